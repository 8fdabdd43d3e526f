package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aine1100/pixbay-backend/internal/types"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/gateway"
)

func testBooking() types.BookingDetails {
	return types.BookingDetails{ID: "bk-1", Amount: 5000, Currency: "RWF", Type: "photoshoot"}
}

func newTestMachine(gw GatewayClient, cfg MachineConfig) *Machine {
	return NewMachine(newSession("sess-1", "user-1", testBooking()), gw, cfg)
}

// blockingGateway parks Charge calls until released, so tests can observe
// the wizard while a call is in flight.
type blockingGateway struct {
	entered chan struct{}
	release chan struct{}
	result  *gateway.ChargeResult
}

func newBlockingGateway(result *gateway.ChargeResult) *blockingGateway {
	return &blockingGateway{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		result:  result,
	}
}

func (g *blockingGateway) Charge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.result, nil
}

func (g *blockingGateway) ValidateCharge(ctx context.Context, txRef, otp string) (*gateway.ValidateResult, error) {
	return &gateway.ValidateResult{Success: true}, nil
}

func TestCardFlow(t *testing.T) {
	mock := gateway.NewMockClient()
	success := make(chan Session, 1)
	m := newTestMachine(mock, MachineConfig{
		CloseDelay: time.Hour,
		OnSuccess:  func(s Session) { success <- s },
	})
	ctx := context.Background()

	if err := m.SelectMethod(MethodCard); err != nil {
		t.Fatalf("SelectMethod() error = %v", err)
	}
	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed(selection) error = %v", err)
	}
	if got := m.Snapshot().Step; got != StepDetails {
		t.Fatalf("Step = %s, want details", got)
	}

	if err := m.EnterCard(CardInput{Number: "4556737586899855", Expiry: "09/32", CVV: "828"}); err != nil {
		t.Fatalf("EnterCard() error = %v", err)
	}
	if got := m.Snapshot().Card.Number; got != "4556 7375 8689 9855" {
		t.Errorf("card number not reformatted: %q", got)
	}

	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed(details) error = %v", err)
	}
	if got := m.Snapshot().Step; got != StepPIN {
		t.Fatalf("Step = %s, want pin", got)
	}
	if len(mock.ChargeRequests) != 0 {
		t.Fatal("card details must not hit the gateway before the pin step")
	}

	if err := m.EnterPIN("1234"); err != nil {
		t.Fatalf("EnterPIN() error = %v", err)
	}
	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed(pin) error = %v", err)
	}

	snap := m.Snapshot()
	if snap.Step != StepOTP {
		t.Fatalf("Step = %s, want otp", snap.Step)
	}
	if snap.TransactionRef == "" {
		t.Fatal("TransactionRef must be set when otp is required")
	}
	if len(mock.ChargeRequests) != 1 || mock.ChargeRequests[0].PIN != "1234" {
		t.Fatalf("charge requests = %+v, want one with pin", mock.ChargeRequests)
	}

	if err := m.EnterOTP("12345"); err != nil {
		t.Fatalf("EnterOTP() error = %v", err)
	}
	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed(otp) error = %v", err)
	}
	if got := m.Snapshot().Step; got != StepSuccess {
		t.Fatalf("Step = %s, want success", got)
	}
	if len(mock.ValidateRequests) != 1 || mock.ValidateRequests[0].OTP != "12345" {
		t.Fatalf("validate requests = %+v", mock.ValidateRequests)
	}

	select {
	case s := <-success:
		if s.Booking.ID != "bk-1" {
			t.Errorf("success booking = %s, want bk-1", s.Booking.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("OnSuccess was not fired")
	}
}

func TestMomoFlowSkipsPin(t *testing.T) {
	mock := gateway.NewMockClient()
	m := newTestMachine(mock, MachineConfig{CloseDelay: time.Hour})
	ctx := context.Background()

	if err := m.SelectMethod(MethodMomo); err != nil {
		t.Fatalf("SelectMethod() error = %v", err)
	}
	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed(selection) error = %v", err)
	}
	if err := m.EnterMomo(MomoInput{PhoneNumber: "0788 123 456", Network: "mtn"}); err != nil {
		t.Fatalf("EnterMomo() error = %v", err)
	}

	snap := m.Snapshot()
	if snap.Momo.PhoneNumber != "0788123456" || snap.Momo.Network != "MTN" {
		t.Errorf("momo input not normalized: %+v", snap.Momo)
	}

	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed(details) error = %v", err)
	}

	snap = m.Snapshot()
	if snap.Step != StepSuccess {
		t.Fatalf("Step = %s, want success", snap.Step)
	}
	if snap.TransactionRef != "" {
		t.Error("TransactionRef must stay empty when no otp was required")
	}
}

func TestChargeFailureStaysOnStep(t *testing.T) {
	mock := gateway.NewMockClient()
	mock.NextChargeResult = &gateway.ChargeResult{Success: false, Message: "Insufficient funds"}
	m := newTestMachine(mock, MachineConfig{CloseDelay: time.Hour})
	ctx := context.Background()

	m.SelectMethod(MethodMomo)
	m.Proceed(ctx)
	m.EnterMomo(MomoInput{PhoneNumber: "0788123456", Network: "MTN"})
	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}

	snap := m.Snapshot()
	if snap.Step != StepDetails {
		t.Fatalf("Step = %s, want details after a declined charge", snap.Step)
	}
	if snap.Err != "Insufficient funds" {
		t.Errorf("Err = %q, want gateway message", snap.Err)
	}

	// The next edit clears the error.
	m.EnterMomo(MomoInput{PhoneNumber: "0788123457", Network: "MTN"})
	if got := m.Snapshot().Err; got != "" {
		t.Errorf("Err = %q, want cleared after edit", got)
	}
}

func TestMomoPinChallenge(t *testing.T) {
	mock := gateway.NewMockClient()
	mock.NextChargeResult = &gateway.ChargeResult{Success: true, RequiresPIN: true}
	m := newTestMachine(mock, MachineConfig{CloseDelay: time.Hour})
	ctx := context.Background()

	m.SelectMethod(MethodMomo)
	m.Proceed(ctx)
	m.EnterMomo(MomoInput{PhoneNumber: "0788123456", Network: "MTN"})
	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}
	if got := m.Snapshot().Step; got != StepPIN {
		t.Fatalf("Step = %s, want pin when the provider demands one", got)
	}

	// Back from the challenged pin step returns to details, and from
	// details to selection, exactly one step at a time.
	if err := m.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}
	if got := m.Snapshot().Step; got != StepDetails {
		t.Fatalf("Step = %s, want details", got)
	}
	if err := m.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}
	if got := m.Snapshot().Step; got != StepSelection {
		t.Fatalf("Step = %s, want selection", got)
	}
	if err := m.Back(); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Back() at selection = %v, want invalid transition", err)
	}
}

func TestBackFromOtpDropsReference(t *testing.T) {
	mock := gateway.NewMockClient()
	m := newTestMachine(mock, MachineConfig{CloseDelay: time.Hour})
	ctx := context.Background()

	m.SelectMethod(MethodCard)
	m.Proceed(ctx)
	m.EnterCard(CardInput{Number: "4556737586899855", Expiry: "09/32", CVV: "828"})
	m.Proceed(ctx)
	m.EnterPIN("1234")
	m.Proceed(ctx)

	if got := m.Snapshot(); got.Step != StepOTP || got.TransactionRef == "" {
		t.Fatalf("setup failed, snapshot = %+v", got)
	}

	if err := m.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}
	snap := m.Snapshot()
	if snap.Step != StepPIN {
		t.Fatalf("Step = %s, want pin", snap.Step)
	}
	if snap.TransactionRef != "" {
		t.Error("TransactionRef must be dropped when leaving the otp step")
	}
}

func TestProceedValidation(t *testing.T) {
	mock := gateway.NewMockClient()
	m := newTestMachine(mock, MachineConfig{CloseDelay: time.Hour})
	ctx := context.Background()

	if err := m.Proceed(ctx); !errors.Is(err, apperrors.ErrInvalidPaymentMethod) {
		t.Errorf("Proceed() without method = %v, want invalid method", err)
	}

	m.SelectMethod(MethodCard)
	m.Proceed(ctx)
	m.EnterCard(CardInput{Number: "4556", Expiry: "09/32", CVV: "828"})
	if err := m.Proceed(ctx); !errors.Is(err, apperrors.ErrInvalidCardDetails) {
		t.Errorf("Proceed() with short card = %v, want invalid card", err)
	}
	if len(mock.ChargeRequests) != 0 {
		t.Error("invalid input must never reach the gateway")
	}
}

func TestSingleFlight(t *testing.T) {
	gw := newBlockingGateway(&gateway.ChargeResult{Success: true})
	m := newTestMachine(gw, MachineConfig{CloseDelay: time.Hour})
	ctx := context.Background()

	m.SelectMethod(MethodMomo)
	m.Proceed(ctx)
	m.EnterMomo(MomoInput{PhoneNumber: "0788123456", Network: "MTN"})

	done := make(chan error, 1)
	go func() { done <- m.Proceed(ctx) }()

	select {
	case <-gw.entered:
	case <-time.After(time.Second):
		t.Fatal("charge was never initiated")
	}

	if err := m.Proceed(ctx); !errors.Is(err, apperrors.ErrPaymentInFlight) {
		t.Errorf("second Proceed() = %v, want in-flight error", err)
	}
	if err := m.Back(); !errors.Is(err, apperrors.ErrPaymentInFlight) {
		t.Errorf("Back() while processing = %v, want in-flight error", err)
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}
	if got := m.Snapshot().Step; got != StepSuccess {
		t.Errorf("Step = %s, want success", got)
	}
}

func TestCloseDiscardsLateResult(t *testing.T) {
	gw := newBlockingGateway(&gateway.ChargeResult{Success: true})
	success := make(chan Session, 1)
	closed := make(chan string, 1)
	m := newTestMachine(gw, MachineConfig{
		CloseDelay: time.Hour,
		OnSuccess:  func(s Session) { success <- s },
		OnClose:    func(id string) { closed <- id },
	})
	ctx := context.Background()

	m.SelectMethod(MethodMomo)
	m.Proceed(ctx)
	m.EnterMomo(MomoInput{PhoneNumber: "0788123456", Network: "MTN"})

	done := make(chan error, 1)
	go func() { done <- m.Proceed(ctx) }()
	<-gw.entered

	m.Close()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("OnClose was not fired")
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}

	select {
	case <-success:
		t.Fatal("a result arriving after close must be discarded")
	case <-time.After(50 * time.Millisecond):
	}

	if err := m.SelectMethod(MethodCard); !errors.Is(err, apperrors.ErrPaymentSessionNotFound) {
		t.Errorf("operation on closed wizard = %v, want session not found", err)
	}
}

func TestSuccessAutoClose(t *testing.T) {
	mock := gateway.NewMockClient()
	closed := make(chan string, 1)
	m := newTestMachine(mock, MachineConfig{
		CloseDelay: 20 * time.Millisecond,
		OnClose:    func(id string) { closed <- id },
	})
	ctx := context.Background()

	m.SelectMethod(MethodMomo)
	m.Proceed(ctx)
	m.EnterMomo(MomoInput{PhoneNumber: "0788123456", Network: "MTN"})
	m.Proceed(ctx)

	select {
	case id := <-closed:
		if id != "sess-1" {
			t.Errorf("closed session = %s, want sess-1", id)
		}
	case <-time.After(time.Second):
		t.Fatal("wizard did not close itself after success")
	}
}

func TestManagerReopenResets(t *testing.T) {
	mock := gateway.NewMockClient()
	mgr := NewManager(mock, ManagerConfig{SessionTTL: time.Hour, CloseDelay: time.Hour})
	defer mgr.Stop()

	first := mgr.Open("user-1", testBooking())
	first.SelectMethod(MethodCard)
	first.Proceed(context.Background())
	if got := first.Snapshot().Step; got != StepDetails {
		t.Fatalf("Step = %s, want details", got)
	}

	second := mgr.Open("user-1", testBooking())
	snap := second.Snapshot()
	if snap.Step != StepSelection || snap.Method != "" {
		t.Errorf("reopened wizard carries state: %+v", snap)
	}

	if err := first.SelectMethod(MethodMomo); !errors.Is(err, apperrors.ErrPaymentSessionNotFound) {
		t.Errorf("old wizard still alive after reopen: %v", err)
	}

	if _, err := mgr.Get(second.Snapshot().ID, "someone-else"); !errors.Is(err, apperrors.ErrPaymentSessionNotFound) {
		t.Errorf("Get() with wrong owner = %v, want session not found", err)
	}
	if _, err := mgr.Get(second.Snapshot().ID, "user-1"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
}

func TestSnapshotMasksCardDetails(t *testing.T) {
	mock := gateway.NewMockClient()
	m := newTestMachine(mock, MachineConfig{CloseDelay: time.Hour})
	ctx := context.Background()

	m.SelectMethod(MethodCard)
	m.Proceed(ctx)
	if err := m.EnterCard(CardInput{Number: "4556737586899855", Expiry: "09/32", CVV: "828"}); err != nil {
		t.Fatalf("EnterCard() error = %v", err)
	}

	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	body := string(data)

	if strings.Contains(body, "cvv") || strings.Contains(body, "828") {
		t.Errorf("snapshot carries the cvv: %s", body)
	}
	if strings.Contains(body, "4556 7375 8689 9855") {
		t.Errorf("snapshot carries the full card number: %s", body)
	}
	if !strings.Contains(body, `"number":"**** **** **** 9855"`) {
		t.Errorf("snapshot missing the masked number: %s", body)
	}
	if !strings.Contains(body, `"expiry":"09/32"`) {
		t.Errorf("snapshot missing the expiry: %s", body)
	}
}

func TestHostedRedirectIsTerminal(t *testing.T) {
	mock := gateway.NewMockClient()
	mock.NextChargeResult = &gateway.ChargeResult{
		Success:     true,
		PaymentLink: "https://checkout.example/pay/abc123",
	}
	success := make(chan Session, 1)
	m := newTestMachine(mock, MachineConfig{
		CloseDelay: time.Hour,
		OnSuccess:  func(s Session) { success <- s },
	})
	ctx := context.Background()

	m.SelectMethod(MethodMomo)
	m.Proceed(ctx)
	m.EnterMomo(MomoInput{PhoneNumber: "0788123456", Network: "MTN"})
	if err := m.Proceed(ctx); err != nil {
		t.Fatalf("Proceed(details) error = %v", err)
	}

	snap := m.Snapshot()
	if snap.PaymentLink != "https://checkout.example/pay/abc123" {
		t.Errorf("PaymentLink = %q, want the gateway redirect", snap.PaymentLink)
	}
	if snap.Step != StepDetails {
		t.Errorf("Step = %s, want details; settlement for a redirect arrives on the webhook", snap.Step)
	}
	if snap.Processing {
		t.Error("Processing must clear once the charge resolves")
	}
	if snap.Err != "" {
		t.Errorf("Err = %q, want empty", snap.Err)
	}

	select {
	case <-success:
		t.Fatal("a hosted redirect must not fire the success callback")
	default:
	}
}
