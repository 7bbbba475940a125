package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// memOrderRepo mimics the postgres repository's guarded updates and unique
// constraints with a mutex and maps.
type memOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	byKey    map[string]string
	attempts map[string]*domain.PaymentAttempt
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:   map[string]*domain.Order{},
		byKey:    map[string]string{},
		attempts: map[string]*domain.PaymentAttempt{},
	}
}

func (r *memOrderRepo) CreateOrderWithAttempt(_ context.Context, order *domain.Order, attempt *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byKey[order.IdempotencyKey]; dup {
		return domain.E(domain.KindIdempotencyConflict, "idempotency key already used")
	}
	o := *order
	a := *attempt
	r.orders[o.ID] = &o
	r.byKey[o.IdempotencyKey] = o.ID
	r.attempts[a.ID] = &a
	return nil
}

func (r *memOrderRepo) CreateAttempt(_ context.Context, attempt *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := *attempt
	r.attempts[a.ID] = &a
	return nil
}

func (r *memOrderRepo) GetOrderByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) GetOrderByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *r.orders[id]
	return &cp, nil
}

func (r *memOrderRepo) UpdatePaymentStatusGuarded(_ context.Context, orderID string, upd domain.PaymentStatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range upd.From {
		if o.PaymentStatus == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	o.PaymentStatus = upd.To
	o.Status = domain.LifecycleFor(upd.To)
	if upd.FailureCode != "" {
		o.FailureCode = upd.FailureCode
		o.FailureMessage = upd.FailureMessage
	}
	o.UpdatedAt = time.Now()
	return true, nil
}

func (r *memOrderRepo) SetInventoryStatus(_ context.Context, orderID string, status domain.InventoryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
		o.InventoryStatus = status
	}
	return nil
}

func (r *memOrderRepo) MarkStockRestored(_ context.Context, orderID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.StockRestored {
		return false, nil
	}
	o.StockRestored = true
	o.RestockedAt = &at
	o.InventoryStatus = domain.InventoryReleased
	return true, nil
}

func (r *memOrderRepo) SetShippingState(_ context.Context, orderID string, status domain.ShippingStatus, trackingNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
		o.ShippingStatus = status
		if trackingNumber != "" {
			o.TrackingNumber = trackingNumber
		}
	}
	return nil
}

func (r *memOrderRepo) GetAttemptByID(_ context.Context, attemptID string) (*domain.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memOrderRepo) GetLatestAttemptByOrderID(_ context.Context, orderID string) (*domain.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.PaymentAttempt
	for _, a := range r.attempts {
		if a.OrderID != orderID {
			continue
		}
		if latest == nil || a.AttemptNumber > latest.AttemptNumber {
			latest = a
		}
	}
	if latest == nil {
		return nil, domain.ErrAttemptNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memOrderRepo) GetAttemptByProviderRef(_ context.Context, provider domain.PaymentProvider, providerRef string) (*domain.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.Provider == provider && a.ProviderPaymentIntentID == providerRef {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAttemptNotFound
}

func (r *memOrderRepo) UpdateAttemptStatus(_ context.Context, attemptID string, status domain.AttemptStatus, errCode, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	a.Status = status
	if errCode != "" {
		a.LastErrorCode = errCode
		a.LastErrorMessage = errMsg
	}
	a.UpdatedAt = time.Now()
	return nil
}

func (r *memOrderRepo) SetAttemptProviderRef(_ context.Context, attemptID, providerRef, clientSecretOrPageURL string, status domain.AttemptStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	a.ProviderPaymentIntentID = providerRef
	a.ClientSecretOrPageURL = clientSecretOrPageURL
	a.Status = status
	return nil
}

func (r *memOrderRepo) ListStaleOpenAttempts(_ context.Context, cutoff time.Time, limit int) ([]*domain.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PaymentAttempt
	for _, a := range r.attempts {
		if (a.Status == domain.AttemptCreating || a.Status == domain.AttemptActive) && a.UpdatedAt.Before(cutoff) {
			cp := *a
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memOrderRepo) ListStuckOrders(_ context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if (o.PaymentStatus == domain.PaymentNeedsReview || o.ShippingStatus == domain.ShippingNeedsAttention) && o.UpdatedAt.Before(cutoff) {
			cp := *o
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// memInventoryRepo models the stock counter plus the move-key ledger.
type memInventoryRepo struct {
	mu     sync.Mutex
	stock  map[string]int64
	prices map[string]map[string]int64
	moves  map[string]bool
}

func newMemInventoryRepo() *memInventoryRepo {
	return &memInventoryRepo{
		stock:  map[string]int64{},
		prices: map[string]map[string]int64{},
		moves:  map[string]bool{},
	}
}

func (r *memInventoryRepo) setProduct(productID string, stock int64, currency string, priceMinor int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[productID] = stock
	if r.prices[productID] == nil {
		r.prices[productID] = map[string]int64{}
	}
	r.prices[productID][currency] = priceMinor
}

func (r *memInventoryRepo) stockOf(productID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[productID]
}

func (r *memInventoryRepo) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stock, ok := r.stock[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &domain.Product{ID: productID, Stock: stock}, nil
}

func (r *memInventoryRepo) GetPrice(_ context.Context, productID, currency string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prices[productID][currency]
	if !ok {
		return 0, domain.Ef(domain.KindPriceConfigError, "no %s price for product %s", currency, productID)
	}
	return p, nil
}

func (r *memInventoryRepo) Reserve(_ context.Context, orderID, productID string, qty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := domain.ReserveMoveKey(orderID, productID)
	if r.moves[key] {
		return nil
	}
	stock, ok := r.stock[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if stock < qty {
		return domain.Ef(domain.KindInsufficientStock, "product %s has %d, need %d", productID, stock, qty)
	}
	r.stock[productID] = stock - qty
	r.moves[key] = true
	return nil
}

func (r *memInventoryRepo) Release(_ context.Context, orderID, productID string, qty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := domain.ReleaseMoveKey(orderID, productID)
	if r.moves[key] {
		return nil
	}
	if _, ok := r.stock[productID]; !ok {
		return domain.ErrProductNotFound
	}
	r.stock[productID] += qty
	r.moves[key] = true
	return nil
}

// memEventRepo models event-key dedup and the claim lease.
type memEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.ProviderEvent
	byKey  map[string]string
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: map[string]*domain.ProviderEvent{}, byKey: map[string]string{}}
}

func (r *memEventRepo) Insert(_ context.Context, event *domain.ProviderEvent) (*domain.ProviderEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, dup := r.byKey[event.EventKey]; dup {
		cp := *r.events[id]
		return &cp, false, nil
	}
	cp := *event
	r.events[cp.ID] = &cp
	r.byKey[cp.EventKey] = cp.ID
	out := cp
	return &out, true, nil
}

func (r *memEventRepo) GetByID(_ context.Context, eventID string) (*domain.ProviderEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEventRepo) Claim(_ context.Context, eventID, owner string, now time.Time, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return false, domain.ErrEventNotFound
	}
	if e.AppliedAt != nil {
		return false, nil
	}
	if e.ClaimExpiresAt != nil && e.ClaimExpiresAt.After(now) {
		return false, nil
	}
	expires := now.Add(ttl)
	e.ClaimedAt = &now
	e.ClaimExpiresAt = &expires
	e.ClaimedBy = owner
	return true, nil
}

func (r *memEventRepo) FinishApply(_ context.Context, eventID string, at time.Time, result domain.AppliedResult, errCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	e.AppliedAt = &at
	e.AppliedResult = result
	e.AppliedErrorCode = errCode
	e.ClaimedBy = ""
	e.ClaimExpiresAt = nil
	return nil
}

func (r *memEventRepo) LastAppliedModifiedAt(_ context.Context, invoiceID string) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *time.Time
	for _, e := range r.events {
		if e.InvoiceID != invoiceID || e.AppliedResult != domain.AppliedOK || e.ProviderModifiedAt == nil {
			continue
		}
		if last == nil || e.ProviderModifiedAt.After(*last) {
			t := *e.ProviderModifiedAt
			last = &t
		}
	}
	return last, nil
}

func (r *memEventRepo) ListUnapplied(_ context.Context, now time.Time, limit int) ([]*domain.ProviderEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ProviderEvent
	for _, e := range r.events {
		if e.AppliedAt != nil {
			continue
		}
		if e.ClaimExpiresAt != nil && e.ClaimExpiresAt.After(now) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// memShipmentRepo models the work queue with lease semantics.
type memShipmentRepo struct {
	mu        sync.Mutex
	shipments map[string]*domain.ShippingShipment
	byOrder   map[string]string
}

func newMemShipmentRepo() *memShipmentRepo {
	return &memShipmentRepo{shipments: map[string]*domain.ShippingShipment{}, byOrder: map[string]string{}}
}

func (r *memShipmentRepo) Enqueue(_ context.Context, shipment *domain.ShippingShipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byOrder[shipment.OrderID]; dup {
		return nil
	}
	cp := *shipment
	r.shipments[cp.ID] = &cp
	r.byOrder[cp.OrderID] = cp.ID
	return nil
}

func (r *memShipmentRepo) GetByOrderID(_ context.Context, orderID string) (*domain.ShippingShipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byOrder[orderID]
	if !ok {
		return nil, domain.ErrShipmentNotFound
	}
	cp := *r.shipments[id]
	return &cp, nil
}

func (r *memShipmentRepo) ClaimDueBatch(_ context.Context, owner string, now time.Time, lease time.Duration, limit int) ([]*domain.ShippingShipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ShippingShipment
	for _, s := range r.shipments {
		due := false
		switch s.Status {
		case domain.ShipmentQueued:
			due = true
		case domain.ShipmentFailed:
			due = s.NextAttemptAt != nil && !s.NextAttemptAt.After(now)
		case domain.ShipmentProcessing:
			due = s.LeaseExpiresAt != nil && s.LeaseExpiresAt.Before(now)
		}
		if !due {
			continue
		}
		expires := now.Add(lease)
		s.Status = domain.ShipmentProcessing
		s.LeaseOwner = owner
		s.LeaseExpiresAt = &expires
		cp := *s
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memShipmentRepo) MarkSucceeded(_ context.Context, shipmentID, providerRef, trackingNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shipments[shipmentID]
	if !ok {
		return domain.ErrShipmentNotFound
	}
	s.Status = domain.ShipmentSucceeded
	s.ProviderRef = providerRef
	s.TrackingNumber = trackingNumber
	s.LeaseOwner = ""
	s.LeaseExpiresAt = nil
	return nil
}

func (r *memShipmentRepo) MarkRetry(_ context.Context, shipmentID string, attemptCount int, nextAttemptAt time.Time, errCode, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shipments[shipmentID]
	if !ok {
		return domain.ErrShipmentNotFound
	}
	s.Status = domain.ShipmentFailed
	s.AttemptCount = attemptCount
	s.NextAttemptAt = &nextAttemptAt
	s.LastErrorCode = errCode
	s.LastErrorMessage = errMsg
	s.LeaseOwner = ""
	s.LeaseExpiresAt = nil
	return nil
}

func (r *memShipmentRepo) MarkNeedsAttention(_ context.Context, shipmentID string, attemptCount int, errCode, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shipments[shipmentID]
	if !ok {
		return domain.ErrShipmentNotFound
	}
	s.Status = domain.ShipmentNeedsAttention
	s.AttemptCount = attemptCount
	s.LastErrorCode = errCode
	s.LastErrorMessage = errMsg
	s.LeaseOwner = ""
	s.LeaseExpiresAt = nil
	return nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func newMemAuditRepo() *memAuditRepo { return &memAuditRepo{} }

func (r *memAuditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memAuditRepo) ListByOrderID(_ context.Context, orderID string) ([]*domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range r.entries {
		if e.OrderID == orderID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAuditRepo) actions(orderID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.OrderID == orderID {
			out = append(out, e.Action)
		}
	}
	return out
}

type memGateRepo struct {
	mu    sync.Mutex
	gates map[string]time.Time
}

func newMemGateRepo() *memGateRepo { return &memGateRepo{gates: map[string]time.Time{}} }

func (r *memGateRepo) TryPass(_ context.Context, jobName string, now time.Time, interval time.Duration) (bool, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, ok := r.gates[jobName]
	if ok && next.After(now) {
		return false, next, nil
	}
	r.gates[jobName] = now.Add(interval)
	return true, r.gates[jobName], nil
}

// fakePSP scripts provider behavior per test.
type fakePSP struct {
	provider      domain.PaymentProvider
	createResult  *domain.IntentResult
	createErr     error
	createErrs    []error // consumed per call before createErr; nil entry = success
	createCalls   int
	statusResults map[string]*domain.IntentResult
	statusErr     error
}

func (f *fakePSP) Provider() domain.PaymentProvider { return f.provider }

func (f *fakePSP) CreateIntent(_ context.Context, _ domain.CreateIntentInput) (*domain.IntentResult, error) {
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
		return f.createResult, nil
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResult, nil
}

func (f *fakePSP) GetIntentStatus(_ context.Context, providerRef string) (*domain.IntentResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	res, ok := f.statusResults[providerRef]
	if !ok {
		return nil, errors.New("unknown intent")
	}
	return res, nil
}

func (f *fakePSP) VerifyWebhook(raw []byte, _ string) (*domain.ProviderNotification, error) {
	return &domain.ProviderNotification{Provider: f.provider, Raw: raw}, nil
}

// fakeCarrier scripts label creation outcomes in call order.
type fakeCarrier struct {
	mu       sync.Mutex
	outcomes []error
	result   *domain.LabelResult
	calls    int
}

func (f *fakeCarrier) CreateLabel(_ context.Context, _ domain.CreateLabelInput) (*domain.LabelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx < len(f.outcomes) && f.outcomes[idx] != nil {
		return nil, f.outcomes[idx]
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.LabelResult{ProviderRef: "lbl_1", TrackingNumber: "TRK123"}, nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []domain.FulfillmentEvent
}

func (p *memPublisher) Publish(event domain.FulfillmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *memPublisher) stages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Stage)
	}
	return out
}
