package ensemble

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// MockEventService is a mock implementation of EventService
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	args := m.Called(eventType, handler)
	return args.Error(0)
}

func (m *MockEventService) Unsubscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	args := m.Called(eventType, handler)
	return args.Error(0)
}

func (m *MockEventService) Publish(ctx context.Context, event interfaces.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventService) PublishSync(ctx context.Context, event interfaces.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventService) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockEventService) publishedTypes() []interfaces.EventType {
	var types []interfaces.EventType
	for _, call := range m.Calls {
		if call.Method == "Publish" {
			types = append(types, call.Arguments.Get(1).(interfaces.Event).Type)
		}
	}
	return types
}

// memoryStorage is an in-memory StorageManager
type memoryStorage struct {
	mu        sync.Mutex
	ensembles map[string]*models.EnsembleConfiguration
	results   map[string]*models.EnsembleResult
	saveErr   error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		ensembles: make(map[string]*models.EnsembleConfiguration),
		results:   make(map[string]*models.EnsembleResult),
	}
}

func (s *memoryStorage) EnsembleStorage() interfaces.EnsembleStorage { return s }
func (s *memoryStorage) ResultStorage() interfaces.ResultStorage     { return s }
func (s *memoryStorage) Close() error                                { return nil }

func (s *memoryStorage) SaveEnsemble(ctx context.Context, config *models.EnsembleConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensembles[config.EnsembleID] = config
	return nil
}

func (s *memoryStorage) GetEnsemble(ctx context.Context, ensembleID string) (*models.EnsembleConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	config, ok := s.ensembles[ensembleID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return config, nil
}

func (s *memoryStorage) ListEnsembles(ctx context.Context) ([]*models.EnsembleConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.EnsembleConfiguration, 0, len(s.ensembles))
	for _, c := range s.ensembles {
		out = append(out, c)
	}
	return out, nil
}

func (s *memoryStorage) DeleteEnsemble(ctx context.Context, ensembleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ensembles, ensembleID)
	return nil
}

func (s *memoryStorage) SaveResult(ctx context.Context, result *models.EnsembleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.results[result.ResultID] = result
	return nil
}

func (s *memoryStorage) GetResult(ctx context.Context, resultID string) (*models.EnsembleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[resultID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return result, nil
}

func (s *memoryStorage) ListResults(ctx context.Context, ensembleID string, limit int) ([]*models.EnsembleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.EnsembleResult
	for _, r := range s.results {
		if r.EnsembleID == ensembleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStorage) DeleteResult(ctx context.Context, resultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, resultID)
	return nil
}

func (s *memoryStorage) DeleteResultsByEnsemble(ctx context.Context, ensembleID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, r := range s.results {
		if r.EnsembleID == ensembleID {
			delete(s.results, id)
			removed++
		}
	}
	return removed, nil
}

func newTestService(t *testing.T, config ServiceConfig) (*Service, *memoryStorage, *MockEventService) {
	t.Helper()
	storage := newMemoryStorage()
	events := new(MockEventService)
	events.On("Publish", mock.Anything, mock.Anything).Return(nil)
	o := newTestOrchestrator(scenarioPredictor(), nil, defaultOrchestratorConfig())
	return NewService(o, storage, events, config, testLogger()), storage, events
}

func TestService_CreateEnsemble(t *testing.T) {
	svc, storage, events := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	resp, err := svc.CreateEnsemble(ctx, &models.CreateEnsembleRequest{ModelIDs: exampleModels})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 4, resp.AgentsCreated)
	assert.Equal(t, []models.Role{
		models.RoleRiskManager,
		models.RoleTechnicalAnalyst,
		models.RoleVolatilityExpert,
		models.RoleCoordinator,
	}, resp.AgentRoles)
	assert.Len(t, resp.ModelAssignments, 4)
	assert.Empty(t, resp.Error)

	stored, err := svc.GetEnsemble(ctx, resp.EnsembleID)
	require.NoError(t, err)
	assert.Equal(t, models.ModeParallel, stored.Mode)
	assert.Len(t, storage.ensembles, 1)

	assert.Equal(t, []interfaces.EventType{interfaces.EventEnsembleCreated}, events.publishedTypes())
}

func TestService_CreateEnsembleFailures(t *testing.T) {
	tests := []struct {
		name    string
		req     *models.CreateEnsembleRequest
		wantErr error
	}{
		{"no models", &models.CreateEnsembleRequest{}, ErrInvalidRequest},
		{"blank model id", &models.CreateEnsembleRequest{ModelIDs: []string{""}}, ErrInvalidRequest},
		{"unknown mode", &models.CreateEnsembleRequest{ModelIDs: exampleModels, Mode: "round_robin"}, ErrInvalidRequest},
		{"whitespace only", &models.CreateEnsembleRequest{ModelIDs: []string{"  "}}, ErrNoAgents},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, storage, events := newTestService(t, ServiceConfig{})

			resp, err := svc.CreateEnsemble(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			require.NotNil(t, resp)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, resp.EnsembleID)
			assert.Empty(t, storage.ensembles)
			events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestService_AnalyzePortfolio(t *testing.T) {
	svc, storage, events := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	resp, err := svc.CreateEnsemble(ctx, &models.CreateEnsembleRequest{ModelIDs: exampleModels})
	require.NoError(t, err)

	result, err := svc.AnalyzePortfolio(ctx, resp.EnsembleID, &models.AnalyzeRequest{Portfolio: samplePortfolio()})
	require.NoError(t, err)

	assert.Equal(t, resp.EnsembleID, result.EnsembleID)
	assert.Equal(t, models.DepthStandard, result.Summary.Depth)
	assert.Contains(t, storage.results, result.ResultID)

	stored, err := svc.GetResult(ctx, result.ResultID)
	require.NoError(t, err)
	assert.Equal(t, result, stored)

	assert.Equal(t, []interfaces.EventType{
		interfaces.EventEnsembleCreated,
		interfaces.EventAnalysisStarted,
		interfaces.EventAnalysisCompleted,
	}, events.publishedTypes())
}

func TestService_AnalyzePortfolioErrors(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.AnalyzePortfolio(ctx, "", &models.AnalyzeRequest{})
	assert.ErrorIs(t, err, ErrEnsembleNotReady)

	_, err = svc.AnalyzePortfolio(ctx, "ens_missing", &models.AnalyzeRequest{})
	assert.ErrorIs(t, err, ErrEnsembleNotFound)

	_, err = svc.Analyze(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrEnsembleNotReady)

	resp, err := svc.CreateEnsemble(ctx, &models.CreateEnsembleRequest{ModelIDs: exampleModels})
	require.NoError(t, err)

	_, err = svc.AnalyzePortfolio(ctx, resp.EnsembleID, &models.AnalyzeRequest{Depth: "exhaustive"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.AnalyzePortfolio(ctx, resp.EnsembleID, &models.AnalyzeRequest{
		Portfolio: models.PortfolioSnapshot{Holdings: []models.Holding{{Symbol: "BHP", Weight: 1.5}}},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_AnalyzePublishesAgentFailures(t *testing.T) {
	svc, _, events := newTestService(t, ServiceConfig{})
	svc.orchestrator.registry.Register(models.RoleVolatilityExpert, func(in DecisionInput) (Verdict, error) {
		return Verdict{}, errors.New("garch did not converge")
	})
	ctx := context.Background()

	resp, err := svc.CreateEnsemble(ctx, &models.CreateEnsembleRequest{ModelIDs: exampleModels})
	require.NoError(t, err)

	_, err = svc.AnalyzePortfolio(ctx, resp.EnsembleID, nil)
	require.NoError(t, err)

	assert.Contains(t, events.publishedTypes(), interfaces.EventAgentFailed)
}

func TestService_AnalyzeSurvivesStorageFailure(t *testing.T) {
	svc, storage, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	resp, err := svc.CreateEnsemble(ctx, &models.CreateEnsembleRequest{ModelIDs: exampleModels})
	require.NoError(t, err)

	storage.saveErr = errors.New("disk full")
	result, err := svc.AnalyzePortfolio(ctx, resp.EnsembleID, &models.AnalyzeRequest{Portfolio: samplePortfolio()})
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, storage.results)
}

func TestService_HistoryLimit(t *testing.T) {
	svc, storage, _ := newTestService(t, ServiceConfig{HistoryLimit: 2})
	ctx := context.Background()

	resp, err := svc.CreateEnsemble(ctx, &models.CreateEnsembleRequest{ModelIDs: exampleModels})
	require.NoError(t, err)

	var last *models.EnsembleResult
	for i := 0; i < 4; i++ {
		last, err = svc.AnalyzePortfolio(ctx, resp.EnsembleID, &models.AnalyzeRequest{Portfolio: samplePortfolio()})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	results, err := svc.ListResults(ctx, resp.EnsembleID, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, last.ResultID, results[0].ResultID)
	assert.Len(t, storage.results, 2)
}

func TestService_DeleteEnsemble(t *testing.T) {
	svc, storage, events := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	resp, err := svc.CreateEnsemble(ctx, &models.CreateEnsembleRequest{ModelIDs: exampleModels, Mode: models.ModeSequential})
	require.NoError(t, err)
	_, err = svc.AnalyzePortfolio(ctx, resp.EnsembleID, &models.AnalyzeRequest{Portfolio: samplePortfolio()})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEnsemble(ctx, resp.EnsembleID))
	assert.Empty(t, storage.ensembles)
	assert.Empty(t, storage.results)
	assert.Contains(t, events.publishedTypes(), interfaces.EventEnsembleDeleted)

	assert.ErrorIs(t, svc.DeleteEnsemble(ctx, resp.EnsembleID), ErrEnsembleNotFound)
}

func TestService_NilEvents(t *testing.T) {
	o := newTestOrchestrator(scenarioPredictor(), nil, defaultOrchestratorConfig())
	svc := NewService(o, newMemoryStorage(), nil, ServiceConfig{DefaultDepth: models.DepthQuick}, testLogger())
	ctx := context.Background()

	resp, err := svc.CreateEnsemble(ctx, &models.CreateEnsembleRequest{ModelIDs: exampleModels})
	require.NoError(t, err)

	result, err := svc.AnalyzePortfolio(ctx, resp.EnsembleID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DepthQuick, result.Summary.Depth)
	assert.Len(t, result.AgentDecisions, 3)
}

func TestService_DefaultsDoNotMutateRequests(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	createReq := &models.CreateEnsembleRequest{ModelIDs: exampleModels}
	resp, err := svc.CreateEnsemble(ctx, createReq)
	require.NoError(t, err)
	assert.Empty(t, createReq.Mode)

	stored, err := svc.GetEnsemble(ctx, resp.EnsembleID)
	require.NoError(t, err)
	assert.Equal(t, models.ModeParallel, stored.Mode)

	analyzeReq := &models.AnalyzeRequest{Portfolio: samplePortfolio()}
	result, err := svc.AnalyzePortfolio(ctx, resp.EnsembleID, analyzeReq)
	require.NoError(t, err)
	assert.Empty(t, analyzeReq.Depth)
	assert.Equal(t, models.DepthStandard, result.Summary.Depth)

	// The same request can be reused against a service with different defaults
	quick := NewService(svc.orchestrator, newMemoryStorage(), nil, ServiceConfig{DefaultDepth: models.DepthQuick}, testLogger())
	result, err = quick.Analyze(ctx, stored, analyzeReq)
	require.NoError(t, err)
	assert.Equal(t, models.DepthQuick, result.Summary.Depth)
	assert.Empty(t, analyzeReq.Depth)
}

func TestService_CreateEnsembleNilRequest(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{})

	resp, err := svc.CreateEnsemble(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}
