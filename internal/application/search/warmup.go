package search

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

// ensureVocabulary blocks until both caches are populated.  The caches
// themselves guarantee a single populate pass under concurrent first use.
func (s *serviceImpl) ensureVocabulary(ctx context.Context) error {
	if s.types.Initialized() && s.terms.Initialized() {
		return nil
	}
	if err := s.types.Initialize(ctx); err != nil {
		return err
	}
	if err := s.terms.Initialize(ctx); err != nil {
		return err
	}
	s.recordVocabularySize()
	return nil
}

func (s *serviceImpl) Warmup(ctx context.Context) error {
	pool, err := ants.NewPool(s.opts.WarmupConcurrency)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create warm-up pool")
	}
	defer pool.Release()

	tasks := []struct {
		name string
		init func(context.Context) error
	}{
		{"types", s.types.Initialize},
		{"terms", s.terms.Initialize},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, t := range tasks {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := t.init(ctx); err != nil {
				s.logger.Error("vocabulary warm-up failed", logging.String("cache", t.name), logging.Err(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			return errors.Wrap(submitErr, errors.ErrCodeInternal, "failed to schedule warm-up")
		}
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	s.recordVocabularySize()
	s.logger.Info("vocabulary caches warmed",
		logging.Int("types", s.types.Len()),
		logging.Int("terms", s.terms.Len()))
	return nil
}

func (s *serviceImpl) recordVocabularySize() {
	s.metrics.SetVocabularySize("types", s.types.Len())
	s.metrics.SetVocabularySize("terms", s.terms.Len())
}
