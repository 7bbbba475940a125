package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/metrics"
	"github.com/lunamarket/fulfillment-service/internal/money"
	checkoutdto "github.com/lunamarket/fulfillment-service/internal/usecase/dto/checkout"
	"go.uber.org/zap"
)

type CheckoutUsecase interface {
	Checkout(ctx context.Context, input *checkoutdto.CheckoutInput) (*checkoutdto.CheckoutOutput, error)
	GetOrderView(ctx context.Context, orderID string) (*domain.Order, []*domain.AuditEntry, error)
}

type DefaultCheckoutUsecase struct {
	OrderRepo     domain.OrderRepository
	InventoryRepo domain.InventoryRepository
	AuditRepo     domain.AuditRepository
	RestockUC     RestockUsecase
	PSPClients    map[domain.PaymentProvider]domain.PSPClient
	Metrics       *metrics.FulfillmentMetrics
	Log           *zap.SugaredLogger
	Cfg           config.Checkout
}

func NewDefaultCheckoutUsecase(
	orderRepo domain.OrderRepository,
	inventoryRepo domain.InventoryRepository,
	auditRepo domain.AuditRepository,
	restockUC RestockUsecase,
	pspClients map[domain.PaymentProvider]domain.PSPClient,
	m *metrics.FulfillmentMetrics,
	log *zap.SugaredLogger,
	cfg config.Checkout) *DefaultCheckoutUsecase {

	return &DefaultCheckoutUsecase{
		OrderRepo:     orderRepo,
		InventoryRepo: inventoryRepo,
		AuditRepo:     auditRepo,
		RestockUC:     restockUC,
		PSPClients:    pspClients,
		Metrics:       m,
		Log:           log,
		Cfg:           cfg,
	}
}

// Checkout creates an order for the cart, idempotently by the caller's key.
// On any failure after a partial reservation the reserved lines are released
// before the error is returned; the provider intent is created last so a
// reserved order always has a live payment attempt or is marked failed.
func (uc *DefaultCheckoutUsecase) Checkout(ctx context.Context, input *checkoutdto.CheckoutInput) (*checkoutdto.CheckoutOutput, error) {
	started := time.Now()
	defer func() {
		if uc.Metrics != nil {
			uc.Metrics.CheckoutDuration.Observe(time.Since(started).Seconds())
		}
	}()

	if err := validateCheckoutInput(input); err != nil {
		uc.countCheckout("invalid_payload")
		return nil, err
	}
	digest := checkoutPayloadDigest(input)

	// Idempotency replay path: same key, same payload → same view, no new
	// side effects.
	if out, err := uc.replay(ctx, input.IdempotencyKey, digest); out != nil || err != nil {
		return out, err
	}

	orderID := uuid.NewString()

	// Price every line from authoritative records before reserving anything,
	// so a price config hole causes no side effects at all.
	lines := make([]domain.OrderLine, 0, len(input.Lines))
	amounts := make([]int64, 0, len(input.Lines))
	for _, cartLine := range input.Lines {
		price, err := uc.InventoryRepo.GetPrice(ctx, cartLine.ProductID, input.Currency)
		if err != nil {
			uc.countCheckout("price_config_error")
			return nil, err
		}
		lineTotal, err := money.Mul(price, cartLine.Quantity)
		if err != nil {
			uc.countCheckout("invalid_payload")
			return nil, domain.Wrap(domain.KindInvalidPayload, "line total overflow", err)
		}
		lines = append(lines, domain.OrderLine{
			ProductID:      cartLine.ProductID,
			VariantID:      cartLine.VariantID,
			Quantity:       cartLine.Quantity,
			UnitPriceMinor: price,
			LineTotalMinor: lineTotal,
		})
		amounts = append(amounts, lineTotal)
	}
	total, err := money.Sum(amounts...)
	if err != nil {
		uc.countCheckout("invalid_payload")
		return nil, domain.Wrap(domain.KindInvalidPayload, "order total overflow", err)
	}

	// Reserve line by line; a failed line rolls back everything reserved in
	// this attempt.
	reserved := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		if err := uc.InventoryRepo.Reserve(ctx, orderID, line.ProductID, line.Quantity); err != nil {
			uc.releaseLines(ctx, orderID, reserved)
			if domain.IsKind(err, domain.KindInsufficientStock) {
				uc.countCheckout("insufficient_stock")
			} else {
				uc.countCheckout("error")
			}
			return nil, err
		}
		reserved = append(reserved, line)
	}

	now := time.Now()
	order := &domain.Order{
		ID:               orderID,
		Status:           domain.OrderStatusCreated,
		PaymentStatus:    domain.PaymentPending,
		PaymentProvider:  input.Provider,
		InventoryStatus:  domain.InventoryReserved,
		Currency:         input.Currency,
		TotalAmountMinor: total,
		IdempotencyKey:   input.IdempotencyKey,
		PayloadDigest:    digest,
		ShippingRequired: input.ShippingRequired,
		ShippingMethod:   input.ShippingMethod,
		ShippingStatus:   domain.ShippingNone,
		Shipping:         input.Shipping,
		Lines:            lines,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	attempt := &domain.PaymentAttempt{
		ID:                  uuid.NewString(),
		OrderID:             orderID,
		Provider:            input.Provider,
		Status:              domain.AttemptCreating,
		AttemptNumber:       1,
		IdempotencyKey:      domain.AttemptIdempotencyKey(orderID, 1),
		ExpectedAmountMinor: total,
		Currency:            input.Currency,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := uc.OrderRepo.CreateOrderWithAttempt(ctx, order, attempt); err != nil {
		uc.releaseLines(ctx, orderID, reserved)
		if domain.IsKind(err, domain.KindIdempotencyConflict) {
			// Lost a same-key race; serve the winner's view instead.
			if out, replayErr := uc.replay(ctx, input.IdempotencyKey, digest); out != nil || replayErr != nil {
				return out, replayErr
			}
		}
		uc.countCheckout("error")
		return nil, err
	}

	uc.audit(ctx, orderID, "checkout.created", domain.ActorCheckout, input.RequestID, "", string(domain.PaymentPending),
		fmt.Sprintf("cart of %d lines, total %s %s", len(lines), money.FormatMajor(total), input.Currency))

	finalAttempt, clientSecret, err := uc.createIntent(ctx, order, attempt)
	if err != nil {
		uc.countCheckout("provider_error")
		return nil, err
	}

	uc.countCheckout("created")
	if uc.Metrics != nil {
		uc.Metrics.CheckoutAmountTotal.WithLabelValues(input.Currency).Add(float64(total))
	}
	return &checkoutdto.CheckoutOutput{
		OrderID:               orderID,
		AttemptID:             finalAttempt.ID,
		PaymentStatus:         domain.PaymentRequiresPayment,
		PaymentProvider:       input.Provider,
		InventoryStatus:       domain.InventoryReserved,
		Currency:              input.Currency,
		TotalAmountMinor:      total,
		ClientSecretOrPageURL: clientSecret,
	}, nil
}

// replay returns the existing order's view for this idempotency key, or
// (nil, nil) when the key is unused.
func (uc *DefaultCheckoutUsecase) replay(ctx context.Context, key, digest string) (*checkoutdto.CheckoutOutput, error) {
	existing, err := uc.OrderRepo.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.PayloadDigest != digest {
		uc.countCheckout("idempotency_conflict")
		return nil, domain.E(domain.KindIdempotencyConflict, "idempotency key reused with a different payload")
	}

	out := &checkoutdto.CheckoutOutput{
		OrderID:          existing.ID,
		PaymentStatus:    existing.PaymentStatus,
		PaymentProvider:  existing.PaymentProvider,
		InventoryStatus:  existing.InventoryStatus,
		Currency:         existing.Currency,
		TotalAmountMinor: existing.TotalAmountMinor,
		Replayed:         true,
	}
	if attempt, err := uc.OrderRepo.GetLatestAttemptByOrderID(ctx, existing.ID); err == nil {
		out.AttemptID = attempt.ID
		out.ClientSecretOrPageURL = attempt.ClientSecretOrPageURL
	}
	uc.countCheckout("replayed")
	return out, nil
}

// createIntent asks the provider for an invoice/intent and persists the
// reference. Transient provider errors get a fresh attempt row, up to the
// configured per-provider bound; a terminal failure compensates: inventory
// released, attempt and order marked failed, so a reserved order is never
// left without a live attempt.
func (uc *DefaultCheckoutUsecase) createIntent(ctx context.Context, order *domain.Order, attempt *domain.PaymentAttempt) (*domain.PaymentAttempt, string, error) {
	psp, ok := uc.PSPClients[order.PaymentProvider]
	if !ok {
		return attempt, "", domain.Ef(domain.KindInvalidPayload, "unsupported payment provider %q", order.PaymentProvider)
	}
	maxAttempts := uc.Cfg.MaxAttemptsPerProvider
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for {
		intent, err := psp.CreateIntent(ctx, domain.CreateIntentInput{
			IdempotencyKey: attempt.IdempotencyKey,
			AmountMinor:    order.TotalAmountMinor,
			Currency:       order.Currency,
			OrderID:        order.ID,
			Description:    fmt.Sprintf("order %s", order.ID),
		})
		if err == nil {
			if err := uc.OrderRepo.SetAttemptProviderRef(ctx, attempt.ID, intent.ProviderRef, intent.ClientSecretOrPageURL, domain.AttemptActive); err != nil {
				return attempt, "", err
			}
			if _, err := uc.OrderRepo.UpdatePaymentStatusGuarded(ctx, order.ID, domain.PaymentStatusUpdate{
				To:   domain.PaymentRequiresPayment,
				From: domain.AllowedPaymentSources(domain.PaymentRequiresPayment),
			}); err != nil {
				return attempt, "", err
			}
			return attempt, intent.ClientSecretOrPageURL, nil
		}

		failCode := "PSP_UNKNOWN"
		var pspErr *domain.PSPError
		if errors.As(err, &pspErr) {
			failCode = string(pspErr.Kind)
		}
		if updErr := uc.OrderRepo.UpdateAttemptStatus(ctx, attempt.ID, domain.AttemptFailed, failCode, "intent creation failed"); updErr != nil {
			uc.Log.Errorw("failed to fail attempt after intent error", "attempt_id", attempt.ID, "error", updErr)
		}

		if retryableIntentError(err) && attempt.AttemptNumber < maxAttempts {
			next, createErr := uc.nextAttempt(ctx, order, attempt.AttemptNumber+1)
			if createErr == nil {
				uc.Log.Warnw("retrying payment intent creation",
					"order_id", order.ID, "attempt_number", next.AttemptNumber, "error", err)
				attempt = next
				continue
			}
			uc.Log.Errorw("failed to create retry attempt", "order_id", order.ID, "error", createErr)
		}

		uc.Log.Errorw("payment intent creation failed",
			"order_id", order.ID, "provider", order.PaymentProvider, "error", err)
		if _, updErr := uc.OrderRepo.UpdatePaymentStatusGuarded(ctx, order.ID, domain.PaymentStatusUpdate{
			To:             domain.PaymentFailed,
			From:           domain.AllowedPaymentSources(domain.PaymentFailed),
			FailureCode:    failCode,
			FailureMessage: "payment intent creation failed",
		}); updErr != nil {
			uc.Log.Errorw("failed to mark order failed after intent error", "order_id", order.ID, "error", updErr)
		}
		if restockErr := uc.RestockUC.RestockOrder(ctx, order.ID, RestockReasonIntentFailed); restockErr != nil {
			uc.Log.Errorw("failed to restock after intent error", "order_id", order.ID, "error", restockErr)
		}
		uc.audit(ctx, order.ID, "checkout.intent_failed", domain.ActorCheckout, "",
			string(domain.PaymentPending), string(domain.PaymentFailed), failCode)

		return attempt, "", domain.Wrap(domain.KindProviderError, "payment provider rejected intent creation", err)
	}
}

// nextAttempt persists a follow-up attempt with its deterministic idempotency
// key, so the provider can dedup even if the retry itself is replayed.
func (uc *DefaultCheckoutUsecase) nextAttempt(ctx context.Context, order *domain.Order, number int) (*domain.PaymentAttempt, error) {
	now := time.Now()
	attempt := &domain.PaymentAttempt{
		ID:                  uuid.NewString(),
		OrderID:             order.ID,
		Provider:            order.PaymentProvider,
		Status:              domain.AttemptCreating,
		AttemptNumber:       number,
		IdempotencyKey:      domain.AttemptIdempotencyKey(order.ID, number),
		ExpectedAmountMinor: order.TotalAmountMinor,
		Currency:            order.Currency,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.OrderRepo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// retryableIntentError reports whether another attempt could plausibly land.
// Provider-side trouble and transport failures retry; rejected requests and
// auth failures do not.
func retryableIntentError(err error) bool {
	var pspErr *domain.PSPError
	if errors.As(err, &pspErr) {
		return pspErr.Kind == domain.PSPUnknown
	}
	return true
}

func (uc *DefaultCheckoutUsecase) GetOrderView(ctx context.Context, orderID string) (*domain.Order, []*domain.AuditEntry, error) {
	order, err := uc.OrderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	audit, err := uc.AuditRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, audit, nil
}

func (uc *DefaultCheckoutUsecase) releaseLines(ctx context.Context, orderID string, lines []domain.OrderLine) {
	for _, line := range lines {
		if err := uc.InventoryRepo.Release(ctx, orderID, line.ProductID, line.Quantity); err != nil {
			uc.Log.Errorw("failed to release partial reservation",
				"order_id", orderID, "product_id", line.ProductID, "error", err)
		}
	}
}

func (uc *DefaultCheckoutUsecase) audit(ctx context.Context, orderID, action, actor, requestID, from, to, note string) {
	err := uc.AuditRepo.Append(ctx, &domain.AuditEntry{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		Action:     action,
		Actor:      actor,
		RequestID:  requestID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		uc.Log.Errorw("failed to append audit entry", "order_id", orderID, "action", action, "error", err)
	}
}

func (uc *DefaultCheckoutUsecase) countCheckout(outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.CheckoutsTotal.WithLabelValues(outcome).Inc()
	}
}

func validateCheckoutInput(input *checkoutdto.CheckoutInput) error {
	if input == nil {
		return domain.E(domain.KindInvalidPayload, "empty checkout payload")
	}
	if n := len(input.IdempotencyKey); n < 16 || n > 128 {
		return domain.E(domain.KindInvalidPayload, "idempotency key must be 16-128 characters")
	}
	if len(input.Currency) != 3 {
		return domain.E(domain.KindInvalidPayload, "currency must be a 3-letter code")
	}
	switch input.Provider {
	case domain.ProviderStripe, domain.ProviderMonobank:
	default:
		return domain.Ef(domain.KindInvalidPayload, "unsupported payment provider %q", input.Provider)
	}
	if len(input.Lines) == 0 {
		return domain.E(domain.KindInvalidPayload, "cart has no lines")
	}
	seen := make(map[string]bool, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID == "" {
			return domain.E(domain.KindInvalidPayload, "cart line without product id")
		}
		if line.Quantity <= 0 {
			return domain.Ef(domain.KindInvalidPayload, "invalid quantity %d for product %s", line.Quantity, line.ProductID)
		}
		if seen[line.ProductID] {
			return domain.Ef(domain.KindInvalidPayload, "duplicate cart line for product %s", line.ProductID)
		}
		seen[line.ProductID] = true
	}
	if input.ShippingRequired {
		if missing := input.Shipping.Validate(); len(missing) > 0 {
			return domain.Ef(domain.KindInvalidPayload, "incomplete shipping snapshot: missing %v", missing)
		}
	}
	return nil
}

// checkoutPayloadDigest canonicalizes the business payload so a replayed
// request can be distinguished from a key reuse.
func checkoutPayloadDigest(input *checkoutdto.CheckoutInput) string {
	canonical := struct {
		Currency         string
		Provider         domain.PaymentProvider
		Lines            []checkoutdto.CartLine
		ShippingRequired bool
		ShippingMethod   string
		Shipping         *domain.ShippingSnapshot
	}{
		Currency:         input.Currency,
		Provider:         input.Provider,
		Lines:            input.Lines,
		ShippingRequired: input.ShippingRequired,
		ShippingMethod:   input.ShippingMethod,
		Shipping:         input.Shipping,
	}
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
