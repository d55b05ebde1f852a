package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kaizenhr/appraise/backend/models"
)

const (
	sessionIdleTimeout   = 2 * time.Hour
	sessionSweepInterval = 30 * time.Minute
)

// EngineManager hands out at most one conversation engine per employee and
// evicts engines that have been idle too long. The draft lookup inside the
// engine plus this per-employee registry is what keeps a single writer on
// each draft record.
type EngineManager struct {
	store      AppraisalStore
	llm        TextGenerator
	planner    QuestionPlanner
	analyzer   *CoverageAnalyzer
	genTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*engineSession
}

type engineSession struct {
	engine       *ConversationEngine
	lastActivity time.Time
}

func NewEngineManager(store AppraisalStore, llm TextGenerator, planner QuestionPlanner, analyzer *CoverageAnalyzer, genTimeout time.Duration) *EngineManager {
	m := &EngineManager{
		store:      store,
		llm:        llm,
		planner:    planner,
		analyzer:   analyzer,
		genTimeout: genTimeout,
		sessions:   make(map[string]*engineSession),
	}
	go m.sweepIdleSessions()
	return m
}

// Get returns the employee's engine, creating one on first use.
func (m *EngineManager) Get(employee *models.User) *ConversationEngine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[employee.ID]; ok {
		session.lastActivity = time.Now()
		return session.engine
	}

	engine := NewConversationEngine(employee, m.store, m.llm, m.planner, m.analyzer, m.genTimeout)
	m.sessions[employee.ID] = &engineSession{
		engine:       engine,
		lastActivity: time.Now(),
	}
	slog.Info("Conversation engine created", "employee_id", employee.ID)
	return engine
}

// Touch refreshes the idle clock for an employee's session.
func (m *EngineManager) Touch(employeeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[employeeID]; ok {
		session.lastActivity = time.Now()
	}
}

// Remove drops the employee's engine, e.g. after submission or cancel. The
// persisted record survives; a later Get builds a fresh engine that resumes
// from storage.
func (m *EngineManager) Remove(employeeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, employeeID)
	slog.Info("Conversation engine removed", "employee_id", employeeID)
}

func (m *EngineManager) sweepIdleSessions() {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		for employeeID, session := range m.sessions {
			if now.Sub(session.lastActivity) > sessionIdleTimeout {
				delete(m.sessions, employeeID)
				slog.Info("Idle conversation engine evicted", "employee_id", employeeID)
			}
		}
		m.mu.Unlock()
	}
}
