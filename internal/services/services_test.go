package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/errorpage"
	"github.com/cf-error-page/editor/internal/repositories"
)

type stubItemRepository struct {
	insertErrs []error
	inserted   []domain.Item
	items      map[string]domain.Item
	findErr    error
}

func newStubItemRepository() *stubItemRepository {
	return &stubItemRepository{items: make(map[string]domain.Item)}
}

func (s *stubItemRepository) Insert(_ context.Context, item domain.Item) error {
	s.inserted = append(s.inserted, item)
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	s.items[item.Name] = item
	return nil
}

func (s *stubItemRepository) FindByName(_ context.Context, name string) (domain.Item, error) {
	if s.findErr != nil {
		return domain.Item{}, s.findErr
	}
	item, ok := s.items[name]
	if !ok {
		return domain.Item{}, repositories.NewNotFoundError("stub.find")
	}
	return item, nil
}

func (s *stubItemRepository) Ping(context.Context) error { return nil }
func (s *stubItemRepository) Close() error               { return nil }

type captureRenderer struct {
	params domain.ErrorPageParams
	opts   errorpage.Options
	err    error
}

func (c *captureRenderer) Render(params domain.ErrorPageParams, opts errorpage.Options) (string, error) {
	c.params = params
	c.opts = opts
	if c.err != nil {
		return "", c.err
	}
	return "<html>" + domain.Value(params.Title) + "</html>", nil
}

type stubLocator map[string]string

func (s stubLocator) Lookup(code string) (string, bool) {
	city, ok := s[code]
	return city, ok
}

func sequenceCodes(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i >= len(codes) {
			return "", errors.New("codes exhausted")
		}
		code := codes[i]
		i++
		return code, nil
	}
}

func conflictErr() error {
	return repositories.NewConflictError("stub.insert", fmt.Errorf("duplicate"))
}
