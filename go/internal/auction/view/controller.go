// Package view reconciles everything known about the auction being viewed into
// a single view model.
//
// All per-view state is owned by one goroutine, the controller loop started by
// Run. Pull responses, push messages, countdown ticks and bid acceptances are
// posted to that loop as tasks and applied one at a time. Every task carries
// the generation of the view it was issued for and is discarded if the viewer
// has moved on since.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidlive/go/internal/auction/bidfeed"
	"github.com/mcdev12/bidlive/go/internal/auction/bidpolicy"
	"github.com/mcdev12/bidlive/go/internal/auction/countdown"
	"github.com/mcdev12/bidlive/go/internal/auction/invalidation"
	"github.com/mcdev12/bidlive/go/internal/auction/push"
	"github.com/mcdev12/bidlive/go/internal/auction/snapshot"
	"github.com/mcdev12/bidlive/go/internal/models"
	"github.com/mcdev12/bidlive/go/internal/notify"
)

// Reader pulls authoritative auction state.
type Reader interface {
	GetAuction(ctx context.Context, auctionID int64) (models.AuctionAggregate, error)
	ListBids(ctx context.Context, auctionID int64, page int) (models.BidPage, error)
}

// Writer submits bids.
type Writer interface {
	PlaceBid(ctx context.Context, sub models.BidSubmission) (models.BidReceipt, error)
}

// Subscriber opens the live channel for one auction. *push.Manager implements it.
type Subscriber interface {
	Open(ctx context.Context, auctionID int64, handlers push.Handlers) *push.Handle
	Close(h *push.Handle)
	RequestSnapshot(ctx context.Context, h *push.Handle) error
}

// Config configures a Controller.
type Config struct {
	// Nickname labels the viewer's optimistic bids.
	Nickname string
	// Strategy computes the minimum next bid. Nil uses bidpolicy.Default.
	Strategy bidpolicy.Strategy
	// Clock drives the countdown and optimistic timestamps. Nil uses the real clock.
	Clock clockwork.Clock
	// Notifier receives bid outcomes. Nil discards them.
	Notifier notify.Sink
	// Listener is called on the controller goroutine after every change.
	Listener func(ViewModel)
	// QueueSize bounds the task queue.
	QueueSize int
	// PullTimeout bounds each read API call.
	PullTimeout time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:    bidpolicy.Default,
		QueueSize:   64,
		PullTimeout: 10 * time.Second,
	}
}

// Controller drives the view of at most one auction at a time.
type Controller struct {
	config     Config
	reader     Reader
	writer     Writer
	subscriber Subscriber
	dispatcher *invalidation.Dispatcher
	clock      clockwork.Clock
	notifier   notify.Sink

	tasks   chan func()
	stopped chan struct{}
	running atomic.Bool
	dropped atomic.Bool
	current atomic.Pointer[ViewModel]

	// Owned by the loop goroutine.
	runCtx     context.Context
	generation uint64
	view       *viewState
}

// viewState is everything known about the auction currently shown.
type viewState struct {
	auctionID  int64
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	handle     *push.Handle

	aggregate    *models.AuctionAggregate
	aggregateErr error
	bids         []models.BidRecord
	bidsErr      error

	// delta accumulates pushed fields. seq orders pushes against pull issue
	// times so a pull never erases a push that arrived after it was sent.
	delta     models.SnapshotDelta
	seq       uint64
	endAtSeq  uint64
	statusSeq uint64

	inFlight map[invalidation.Resource]bool
	again    map[invalidation.Resource]bool

	tracker snapshot.Tracker
	feed    bidfeed.Overlay

	timer        *countdown.Timer
	timerStarted bool
	remaining    int

	submitSeq uint64
	placedSeq uint64
}

// NewController creates a controller. Run must be started before it is used.
func NewController(config Config, reader Reader, writer Writer, subscriber Subscriber) *Controller {
	defaults := DefaultConfig()
	if config.Strategy == nil {
		config.Strategy = defaults.Strategy
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.PullTimeout <= 0 {
		config.PullTimeout = defaults.PullTimeout
	}
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	notifier := config.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}

	return &Controller{
		config:     config,
		reader:     reader,
		writer:     writer,
		subscriber: subscriber,
		dispatcher: invalidation.NewDispatcher(),
		clock:      clock,
		notifier:   notifier,
		tasks:      make(chan func(), config.QueueSize),
		stopped:    make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled, then tears down the open view.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("view controller already running")
	}
	c.runCtx = ctx
	defer close(c.stopped)
	defer c.teardown()

	log.Info().Int("queue_size", c.config.QueueSize).Msg("view controller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("view controller stopping")
			return nil
		case task := <-c.tasks:
			task()
			if c.dropped.Swap(false) && c.view != nil {
				log.Warn().Int64("auction_id", c.view.auctionID).Msg("updates were dropped, resyncing")
				c.fetch(c.view, invalidation.ResourceAggregate)
				c.fetch(c.view, invalidation.ResourceBidHistory)
			}
		}
	}
}

// Show switches the view to auctionID. The previous view, if any, is torn down
// in the same step, so nothing issued for it can reach the new one.
func (c *Controller) Show(ctx context.Context, auctionID int64) error {
	if auctionID <= 0 {
		return fmt.Errorf("invalid auction id %d", auctionID)
	}
	return c.do(ctx, func() { c.show(auctionID) })
}

// Leave closes the current view.
func (c *Controller) Leave(ctx context.Context) error {
	return c.do(ctx, func() {
		c.teardown()
		c.publish()
	})
}

// Current returns the latest view model. It is safe to call from any goroutine.
func (c *Controller) Current() ViewModel {
	if vm := c.current.Load(); vm != nil {
		return *vm
	}
	return ViewModel{}
}

// RequestSnapshot asks the live channel for a fresh snapshot of the viewed auction.
func (c *Controller) RequestSnapshot(ctx context.Context) error {
	var h *push.Handle
	if err := c.do(ctx, func() {
		if c.view != nil {
			h = c.view.handle
		}
	}); err != nil {
		return err
	}
	if h == nil {
		return ErrNoAuction
	}
	return c.subscriber.RequestSnapshot(ctx, h)
}

// SubmitBid places a bid of amount on the viewed auction. Local checks run
// first; a server rejection is returned unchanged and leaves the view as it
// was. On acceptance the bid appears in the view model before SubmitBid returns.
func (c *Controller) SubmitBid(ctx context.Context, amount int64) error {
	var (
		auctionID int64
		gen       uint64
		seq       uint64
		guardErr  error
	)
	if err := c.do(ctx, func() {
		s := c.view
		if s == nil {
			guardErr = ErrNoAuction
			return
		}
		auctionID, gen = s.auctionID, s.generation
		f, ok := c.fields(s)
		if !ok {
			guardErr = ErrNotLoaded
			return
		}
		if !f.Status.CanBid() {
			guardErr = ErrBiddingClosed
			return
		}
		if minimum := c.config.Strategy(f.CurrentPrice, s.aggregate.StartPrice, f.BidCount); amount < minimum {
			guardErr = &BelowMinimumError{Amount: amount, Minimum: minimum}
			return
		}
		s.submitSeq++
		seq = s.submitSeq
	}); err != nil {
		return err
	}
	if guardErr != nil {
		c.notify(notify.LevelError, auctionID, guardErr.Error())
		return guardErr
	}

	sub := models.BidSubmission{
		AuctionID:      auctionID,
		BidAmount:      amount,
		IdempotencyKey: uuid.New().String(),
	}
	receipt, err := c.writer.PlaceBid(ctx, sub)
	if err != nil {
		log.Warn().
			Err(err).
			Int64("auction_id", auctionID).
			Int64("amount", amount).
			Msg("bid not accepted")
		c.notify(notify.LevelError, auctionID, err.Error())
		return err
	}

	log.Info().
		Int64("auction_id", auctionID).
		Int64("amount", amount).
		Int64("bid_id", receipt.BidID).
		Msg("bid accepted")
	c.notify(notify.LevelSuccess, auctionID, fmt.Sprintf("bid of %d placed", amount))

	// The server has the bid, so the view must show it even if the caller gave up.
	if err := c.do(context.WithoutCancel(ctx), func() { c.onAccepted(gen, seq, amount, receipt) }); err != nil {
		log.Warn().Err(err).Int64("auction_id", auctionID).Msg("accepted bid not applied to view")
	}
	return nil
}

func (c *Controller) show(auctionID int64) {
	c.teardown()

	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(c.runCtx)
	s := &viewState{
		auctionID:  auctionID,
		generation: gen,
		ctx:        ctx,
		cancel:     cancel,
		inFlight:   map[invalidation.Resource]bool{},
		again:      map[invalidation.Resource]bool{},
		timer:      countdown.New(c.clock),
	}
	c.view = s

	s.handle = c.subscriber.Open(ctx, auctionID, push.Handlers{
		OnEvent: func(kind string, payload json.RawMessage) {
			c.tryPost(gen, true, func() { c.onEvent(gen, kind, payload) })
		},
		OnSnapshot: func(delta models.SnapshotDelta) {
			c.tryPost(gen, true, func() { c.onSnapshot(gen, delta) })
		},
	})

	c.fetch(s, invalidation.ResourceAggregate)
	c.fetch(s, invalidation.ResourceBidHistory)

	log.Info().
		Int64("auction_id", auctionID).
		Uint64("generation", gen).
		Msg("auction view opened")
	c.publish()
}

// teardown closes the current view: the push handle, in-flight pulls, the
// countdown and the optimistic bid all go in one step.
func (c *Controller) teardown() {
	s := c.view
	if s == nil {
		return
	}
	c.view = nil
	c.generation++

	s.cancel()
	c.subscriber.Close(s.handle)
	s.timer.Stop()
	s.feed.Clear()

	log.Info().
		Int64("auction_id", s.auctionID).
		Uint64("generation", s.generation).
		Msg("auction view closed")
}

// live returns the view for gen, or nil if it is no longer shown.
func (c *Controller) live(gen uint64) *viewState {
	if c.view == nil || c.view.generation != gen {
		return nil
	}
	return c.view
}

func (c *Controller) onEvent(gen uint64, kind string, payload json.RawMessage) {
	s := c.live(gen)
	if s == nil {
		log.Debug().Uint64("generation", gen).Str("event_kind", kind).Msg("discarding event for closed view")
		return
	}

	changed := c.applyDelta(s, push.DecodeDelta(payload))
	keys := c.dispatcher.Classify(s.auctionID, invalidation.EventKind(kind))
	c.invalidate(s, keys)
	if changed {
		c.refresh(s)
	}
}

func (c *Controller) onSnapshot(gen uint64, delta models.SnapshotDelta) {
	s := c.live(gen)
	if s == nil {
		log.Debug().Uint64("generation", gen).Msg("discarding snapshot for closed view")
		return
	}
	if c.applyDelta(s, delta) {
		c.refresh(s)
	}
}

func (c *Controller) applyDelta(s *viewState, delta models.SnapshotDelta) bool {
	if delta.IsEmpty() {
		return false
	}
	s.seq++
	if delta.EndAt != nil {
		s.endAtSeq = s.seq
	}
	if delta.Status != nil {
		s.statusSeq = s.seq
	}
	s.delta = s.delta.Overlay(delta)
	return true
}

func (c *Controller) invalidate(s *viewState, keys invalidation.Set) {
	for key := range keys {
		if key.AuctionID != s.auctionID {
			continue
		}
		c.fetch(s, key.Resource)
	}
}

// fetch pulls res for s. While a pull of res is in flight a second request is
// coalesced into one follow-up pull issued when the first completes.
func (c *Controller) fetch(s *viewState, res invalidation.Resource) {
	if s.inFlight[res] {
		s.again[res] = true
		return
	}
	s.inFlight[res] = true
	s.seq++
	issued := s.seq
	gen, auctionID, ctx := s.generation, s.auctionID, s.ctx

	switch res {
	case invalidation.ResourceAggregate:
		go func() {
			pctx, cancel := context.WithTimeout(ctx, c.config.PullTimeout)
			defer cancel()
			agg, err := c.reader.GetAuction(pctx, auctionID)
			c.post(ctx, func() { c.onAggregate(gen, issued, agg, err) })
		}()
	case invalidation.ResourceBidHistory:
		go func() {
			pctx, cancel := context.WithTimeout(ctx, c.config.PullTimeout)
			defer cancel()
			page, err := c.reader.ListBids(pctx, auctionID, 0)
			c.post(ctx, func() { c.onBids(gen, page, err) })
		}()
	default:
		s.inFlight[res] = false
		log.Warn().Str("resource", string(res)).Int64("auction_id", auctionID).Msg("no pull for resource")
	}
}

func (c *Controller) onAggregate(gen, issued uint64, agg models.AuctionAggregate, err error) {
	s := c.live(gen)
	if s == nil {
		log.Debug().Uint64("generation", gen).Msg("discarding aggregate for closed view")
		return
	}
	s.inFlight[invalidation.ResourceAggregate] = false

	if err != nil {
		log.Warn().Err(err).Int64("auction_id", s.auctionID).Msg("failed to load auction")
		s.aggregateErr = err
	} else {
		s.aggregate = &agg
		s.aggregateErr = nil
		if s.endAtSeq < issued {
			s.delta.EndAt = nil
		}
		if s.statusSeq < issued {
			s.delta.Status = nil
		}
	}

	if s.again[invalidation.ResourceAggregate] {
		delete(s.again, invalidation.ResourceAggregate)
		c.fetch(s, invalidation.ResourceAggregate)
	}
	c.refresh(s)
}

func (c *Controller) onBids(gen uint64, page models.BidPage, err error) {
	s := c.live(gen)
	if s == nil {
		log.Debug().Uint64("generation", gen).Msg("discarding bid history for closed view")
		return
	}
	s.inFlight[invalidation.ResourceBidHistory] = false

	if err != nil {
		log.Warn().Err(err).Int64("auction_id", s.auctionID).Msg("failed to load bid history")
		s.bidsErr = err
	} else {
		s.bids = page.Bids
		s.bidsErr = nil
		s.feed.Apply(s.bids)
	}

	if s.again[invalidation.ResourceBidHistory] {
		delete(s.again, invalidation.ResourceBidHistory)
		c.fetch(s, invalidation.ResourceBidHistory)
	}
	c.refresh(s)
}

func (c *Controller) onAccepted(gen, seq uint64, amount int64, receipt models.BidReceipt) {
	s := c.live(gen)
	if s == nil {
		log.Debug().Uint64("generation", gen).Msg("accepted bid belongs to a closed view")
		return
	}
	if seq < s.placedSeq {
		return
	}
	s.placedSeq = seq

	s.feed.Place(c.config.Nickname, amount, receipt.BidID, c.clock.Now())
	c.invalidate(s, invalidation.Set{
		{Resource: invalidation.ResourceAggregate, AuctionID: s.auctionID}:  {},
		{Resource: invalidation.ResourceBidHistory, AuctionID: s.auctionID}: {},
	})
	c.refresh(s)
}

func (c *Controller) onTick(gen uint64, remaining int) {
	s := c.live(gen)
	if s == nil {
		return
	}
	if remaining == s.remaining {
		return
	}
	s.remaining = remaining
	c.publish()
}

// fields returns the merged live fields, or false before the aggregate has loaded.
func (c *Controller) fields(s *viewState) (snapshot.Fields, bool) {
	if s.aggregate == nil {
		return snapshot.Fields{}, false
	}
	return s.tracker.Clamp(snapshot.Merge(*s.aggregate, s.delta)), true
}

// refresh brings the countdown in line with the merged end time and publishes.
func (c *Controller) refresh(s *viewState) {
	if f, ok := c.fields(s); ok && !f.EndAt.IsZero() {
		if !s.timerStarted {
			gen := s.generation
			if err := s.timer.Start(s.ctx, f.EndAt, func(remaining int) {
				c.tryPost(gen, false, func() { c.onTick(gen, remaining) })
			}); err != nil {
				log.Error().Err(err).Int64("auction_id", s.auctionID).Msg("failed to start countdown")
			} else {
				s.timerStarted = true
			}
		} else if !s.timer.End().Equal(f.EndAt) {
			s.timer.SetEnd(f.EndAt)
		}
		s.remaining = countdown.Remaining(f.EndAt, c.clock.Now())
	}
	c.publish()
}

func (c *Controller) publish() {
	vm := c.build()
	c.current.Store(&vm)
	if c.config.Listener != nil {
		c.config.Listener(vm)
	}
}

func (c *Controller) build() ViewModel {
	s := c.view
	if s == nil {
		return ViewModel{Generation: c.generation}
	}

	vm := ViewModel{
		AuctionID:    s.auctionID,
		Generation:   s.generation,
		RemainingSec: s.remaining,
	}
	if s.aggregateErr != nil {
		vm.AggregateError = s.aggregateErr.Error()
	}
	if s.bidsErr != nil {
		vm.BidsError = s.bidsErr.Error()
	}

	if f, ok := c.fields(s); ok {
		agg := s.aggregate
		vm.Loaded = true
		vm.Title = agg.Title
		vm.Description = agg.Description
		vm.StartPrice = agg.StartPrice
		vm.StartAt = agg.StartAt
		vm.SellerID = agg.SellerID
		vm.Images = slices.Clone(agg.Images)
		vm.CurrentPrice = f.CurrentPrice
		vm.BidCount = f.BidCount
		vm.EndAt = f.EndAt
		vm.Status = f.Status
		vm.MinimumNextBid = c.config.Strategy(f.CurrentPrice, agg.StartPrice, f.BidCount)
		vm.CanBid = f.Status.CanBid()
	}

	var pending *models.BidRecord
	if rec, ok := s.feed.Pending(); ok {
		pending = &rec
	}
	display, matched := bidfeed.Reconcile(s.bids, pending)
	vm.Bids = slices.Clone(display)
	if pending != nil && !matched {
		vm.PendingBid = pending
	}
	if vm.Bids == nil {
		vm.Bids = []models.BidRecord{}
	}
	return vm
}

func (c *Controller) notify(level notify.Level, auctionID int64, message string) {
	c.notifier.Notify(notify.Notice{Level: level, AuctionID: auctionID, Message: message})
}

// do runs fn on the loop and waits for it to finish.
func (c *Controller) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	select {
	case c.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

// post queues task, giving up when ctx ends or the loop stops.
func (c *Controller) post(ctx context.Context, task func()) {
	select {
	case c.tasks <- task:
	case <-ctx.Done():
	case <-c.stopped:
	}
}

// tryPost queues task without blocking. It is used from push and countdown
// callbacks, which must never wait on the loop. When resync is set a dropped
// task triggers a refetch of both resources; countdown ticks pass false since
// the next tick recomputes from the end time anyway.
func (c *Controller) tryPost(gen uint64, resync bool, task func()) {
	select {
	case c.tasks <- task:
	default:
		if resync {
			c.dropped.Store(true)
		}
		log.Warn().Uint64("generation", gen).Bool("resync", resync).Msg("view task queue full, dropping update")
	}
}
