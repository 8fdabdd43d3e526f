package payment

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aine1100/pixbay-backend/internal/types"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/logger"
)

type ManagerConfig struct {
	// SessionTTL is how long an idle wizard survives before being swept.
	SessionTTL time.Duration

	// CloseDelay and OnSuccess are handed to every machine.
	CloseDelay time.Duration
	OnSuccess  func(Session)
}

// Manager owns the live payment wizards. Sessions are purely in-memory;
// an abandoned wizard simply ages out, nothing needs recovery.
type Manager struct {
	mu        sync.Mutex
	machines  map[string]*Machine
	byBooking map[string]string

	gw   GatewayClient
	cfg  ManagerConfig
	done chan struct{}
}

func NewManager(gw GatewayClient, cfg ManagerConfig) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	m := &Manager{
		machines:  make(map[string]*Machine),
		byBooking: make(map[string]string),
		gw:        gw,
		cfg:       cfg,
		done:      make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Open starts a fresh wizard for a booking. Any previous wizard for the
// same booking is closed first so no state leaks between attempts.
func (m *Manager) Open(userID string, booking types.BookingDetails) *Machine {
	m.mu.Lock()
	if prevID, ok := m.byBooking[booking.ID]; ok {
		if prev, ok := m.machines[prevID]; ok {
			m.mu.Unlock()
			prev.Close()
			m.mu.Lock()
		}
	}

	id := uuid.NewString()
	session := newSession(id, userID, booking)
	machine := NewMachine(session, m.gw, MachineConfig{
		CloseDelay: m.cfg.CloseDelay,
		OnSuccess:  m.cfg.OnSuccess,
		OnClose:    m.remove,
	})
	m.machines[id] = machine
	m.byBooking[booking.ID] = id
	m.mu.Unlock()

	logger.Debug().
		Str("session_id", id).
		Str("booking_id", booking.ID).
		Msg("payment session opened")
	return machine
}

// Get returns the wizard for a session, scoped to its owner.
func (m *Manager) Get(sessionID, userID string) (*Machine, error) {
	m.mu.Lock()
	machine, ok := m.machines[sessionID]
	m.mu.Unlock()

	if !ok || machine.session.UserID != userID {
		return nil, apperrors.ErrPaymentSessionNotFound
	}
	return machine, nil
}

// Stop halts the sweeper and closes every live wizard.
func (m *Manager) Stop() {
	close(m.done)

	m.mu.Lock()
	machines := make([]*Machine, 0, len(m.machines))
	for _, machine := range m.machines {
		machines = append(machines, machine)
	}
	m.mu.Unlock()

	for _, machine := range machines {
		machine.Close()
	}
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	if machine, ok := m.machines[sessionID]; ok {
		delete(m.machines, sessionID)
		if m.byBooking[machine.session.Booking.ID] == sessionID {
			delete(m.byBooking, machine.session.Booking.ID)
		}
	}
	m.mu.Unlock()
}

func (m *Manager) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			stale := make([]*Machine, 0)
			for _, machine := range m.machines {
				stale = append(stale, machine)
			}
			m.mu.Unlock()

			for _, machine := range stale {
				if machine.expired(m.cfg.SessionTTL) {
					logger.Debug().
						Str("session_id", machine.session.ID).
						Msg("payment session expired")
					machine.Close()
				}
			}
		}
	}
}
