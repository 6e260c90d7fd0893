// Package sweeper finalizes listings whose deadline has passed: auctions are
// settled, fixed-price listings expire. Each listing is processed under a
// per-listing lock so a sweep and a user action cannot both mutate the same
// listing; whichever commits first wins and the loser observes the listing
// already terminal.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"arcana-backend/internal/application/settlement"
	"arcana-backend/internal/domain"
	"arcana-backend/internal/marketplace"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// batchSize caps how many expired listings one sweep pass picks up.
const batchSize = 100

// lockTTL bounds how long a crashed sweeper can hold a listing lock.
const lockTTL = 30 * time.Second

type Sweeper struct {
	DB         *gorm.DB
	Settlement *settlement.Service
	Locks      Locker
	Interval   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(db *gorm.DB, st *settlement.Service, locks Locker, interval time.Duration) *Sweeper {
	return &Sweeper{
		DB:         db,
		Settlement: st,
		Locks:      locks,
		Interval:   interval,
		stop:       make(chan struct{}),
	}
}

// Run ticks until Stop is called or ctx is cancelled. Persistence failures
// inside a pass are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.Interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			processed, failed := s.Sweep(ctx)
			if processed > 0 || failed > 0 {
				log.Info().Int("processed", processed).Int("failed", failed).Msg("sweep pass done")
			}
		}
	}
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Sweep runs one pass over active listings past their deadline. One listing's
// failure never aborts the rest of the pass. processed counts only listings
// this pass actually finalized; listings skipped because another holder owns
// their lock, or because someone else finalized them first, count as neither.
func (s *Sweeper) Sweep(ctx context.Context) (processed, failed int) {
	now := time.Now().UTC()
	var expired []domain.Listing
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", domain.ListingStatusActive, now).
		Limit(batchSize).
		Find(&expired).Error; err != nil {
		log.Error().Err(err).Msg("sweep: scan expired listings")
		return 0, 0
	}

	skipped := 0
	for _, listing := range expired {
		finalized, err := s.process(ctx, listing)
		switch {
		case err != nil:
			failed++
			log.Warn().Err(err).
				Str("listing_id", listing.ListingID.String()).
				Str("listing_type", string(listing.ListingType)).
				Msg("sweep: listing not finalized")
		case finalized:
			processed++
		default:
			skipped++
		}
	}
	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Msg("sweep: listings held or finalized elsewhere")
	}
	return processed, failed
}

func (s *Sweeper) process(ctx context.Context, listing domain.Listing) (bool, error) {
	unlock, err := s.Locks.Acquire(ctx, "listing:"+listing.ListingID.String(), lockTTL)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			// Another sweeper owns it; it will be finalized there.
			return false, nil
		}
		return false, err
	}
	defer unlock()

	if listing.ListingType == domain.ListingTypeAuction {
		_, err = s.Settlement.SettleAuction(ctx, listing.ListingID)
	} else {
		_, err = s.Settlement.ExpireFixedPrice(ctx, listing.ListingID)
	}
	if err != nil {
		// A user action finalized it between the scan and the lock; the
		// listing is already terminal and there is nothing left to do.
		var conflict *marketplace.StateConflictError
		if errors.As(err, &conflict) && conflict.Reason == marketplace.ConflictAlreadyTerminal {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
