package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/filter"
	"crmTracker/internal/handlers"
	"crmTracker/internal/handlers/dto"
	"crmTracker/internal/logger"
	"crmTracker/internal/models/item"
	"crmTracker/internal/repository"
	"crmTracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false)
	os.Exit(m.Run())
}

// MockItemsService - мок сервиса
type MockItemsService struct {
	mock.Mock
}

func (m *MockItemsService) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockItemsService) Buckets() bucket.Config {
	return bucket.DefaultConfig()
}

func (m *MockItemsService) Index(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (*service.IndexResult, error) {
	args := m.Called(ctx, kind, user, view)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IndexResult), args.Error(1)
}

func (m *MockItemsService) GetByID(ctx context.Context, kind item.Kind, user uuid.UUID, id uuid.UUID) (*item.Item, error) {
	args := m.Called(ctx, kind, user, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*item.Item), args.Error(1)
}

func (m *MockItemsService) Create(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, in service.CreateInput) (*service.MutationResult, error) {
	args := m.Called(ctx, kind, user, view, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MutationResult), args.Error(1)
}

func (m *MockItemsService) Update(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, options ...item.ItemOption) (*service.MutationResult, error) {
	args := m.Called(ctx, kind, user, view, id, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MutationResult), args.Error(1)
}

func (m *MockItemsService) Complete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*service.MutationResult, error) {
	args := m.Called(ctx, kind, user, view, id, oldBucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MutationResult), args.Error(1)
}

func (m *MockItemsService) Uncomplete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*service.MutationResult, error) {
	args := m.Called(ctx, kind, user, view, id, oldBucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MutationResult), args.Error(1)
}

func (m *MockItemsService) Delete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*service.MutationResult, error) {
	args := m.Called(ctx, kind, user, view, id, oldBucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MutationResult), args.Error(1)
}

func (m *MockItemsService) ToggleFilter(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, b bucket.Bucket, checked bool) (filter.Set, error) {
	args := m.Called(ctx, kind, user, view, b, checked)
	return args.Get(0).(filter.Set), args.Error(1)
}

var _ handlers.ItemsService = (*MockItemsService)(nil)

// newRequest собирает запрос с параметрами маршрута chi
func newRequest(method, target string, body []byte, user uuid.UUID, params map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != uuid.Nil {
		req.Header.Set("X-User-ID", user.String())
	}

	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// TestItemHandler_HealthCheck тестирует HealthCheck
func TestItemHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockItemsService)
		expectedStatus int
	}{
		{
			name: "success - healthy",
			setupMock: func(m *MockItemsService) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error - unhealthy",
			setupMock: func(m *MockItemsService) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("service unavailable"))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockItemsService)
			tt.setupMock(mockService)

			handler := handlers.NewItemHandler(mockService)

			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()

			handler.HealthCheck(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

// TestItemHandler_Index тестирует выдачу списка
func TestItemHandler_Index(t *testing.T) {
	userID := uuid.New()

	t.Run("success - grouped list with sidebar", func(t *testing.T) {
		mockService := new(MockItemsService)
		due := time.Now().Add(-24 * time.Hour)
		result := &service.IndexResult{
			View: item.ViewPending,
			Groups: repository.Grouped{
				bucket.Overdue: {{
					UUID:   uuid.New(),
					Kind:   item.KindTodo,
					UserID: userID,
					Name:   "Просроченная задача",
					Bucket: bucket.Overdue,
					DueAt:  &due,
				}},
			},
			Sidebar: service.Sidebar{
				Totals:  repository.Totals{bucket.Overdue: 1, bucket.All: 1},
				Filters: filter.Parse("overdue"),
			},
		}
		mockService.On("Index", mock.Anything, item.KindTodo, userID, item.ViewPending).
			Return(result, nil)

		handler := handlers.NewItemHandler(mockService)
		req := newRequest("GET", "/todos", nil, userID, map[string]string{"entity": "todos"})
		w := httptest.NewRecorder()

		handler.Index(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data dto.IndexResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "pending", response.Data.View)
		require.Len(t, response.Data.Groups, 1)
		assert.Equal(t, "overdue", response.Data.Groups[0].Bucket)
		assert.Equal(t, []string{"overdue"}, response.Data.Filters)
		mockService.AssertExpectations(t)
	})

	t.Run("unknown view falls back to pending", func(t *testing.T) {
		mockService := new(MockItemsService)
		mockService.On("Index", mock.Anything, item.KindTodo, userID, item.ViewPending).
			Return(&service.IndexResult{View: item.ViewPending}, nil)

		handler := handlers.NewItemHandler(mockService)
		req := newRequest("GET", "/todos?view=garbage", nil, userID, map[string]string{"entity": "todos"})
		w := httptest.NewRecorder()

		handler.Index(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("error - unknown collection", func(t *testing.T) {
		handler := handlers.NewItemHandler(new(MockItemsService))
		req := newRequest("GET", "/notes", nil, userID, map[string]string{"entity": "notes"})
		w := httptest.NewRecorder()

		handler.Index(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("error - missing user header", func(t *testing.T) {
		handler := handlers.NewItemHandler(new(MockItemsService))
		req := newRequest("GET", "/todos", nil, uuid.Nil, map[string]string{"entity": "todos"})
		w := httptest.NewRecorder()

		handler.Index(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// TestItemHandler_Create тестирует создание записи
func TestItemHandler_Create(t *testing.T) {
	userID := uuid.New()

	t.Run("success - create todo", func(t *testing.T) {
		mockService := new(MockItemsService)
		created := &item.Item{
			UUID:   uuid.New(),
			Kind:   item.KindTodo,
			UserID: userID,
			Name:   "Позвонить клиенту",
			Bucket: bucket.NoDate,
		}
		mockService.On("Create", mock.Anything, item.KindTodo, userID, item.ViewPending,
			mock.MatchedBy(func(in service.CreateInput) bool {
				return in.Name == "Позвонить клиенту"
			})).Return(&service.MutationResult{
			Item:    created,
			Filters: filter.Parse("no_date"),
		}, nil)

		handler := handlers.NewItemHandler(mockService)
		body := []byte(`{"name": "Позвонить клиенту"}`)
		req := newRequest("POST", "/todos", body, userID, map[string]string{"entity": "todos"})
		w := httptest.NewRecorder()

		handler.Create(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response struct {
			Data dto.MutationResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "no_date", response.Data.Item.Bucket)
		assert.Equal(t, []string{"no_date"}, response.Data.Filters)
		mockService.AssertExpectations(t)
	})

	t.Run("error - invalid content type", func(t *testing.T) {
		handler := handlers.NewItemHandler(new(MockItemsService))
		req := newRequest("POST", "/todos", []byte(`{}`), userID, map[string]string{"entity": "todos"})
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()

		handler.Create(w, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("error - empty name", func(t *testing.T) {
		handler := handlers.NewItemHandler(new(MockItemsService))
		req := newRequest("POST", "/todos", []byte(`{"name": ""}`), userID, map[string]string{"entity": "todos"})
		w := httptest.NewRecorder()

		handler.Create(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("error - related record missing", func(t *testing.T) {
		mockService := new(MockItemsService)
		mockService.On("Create", mock.Anything, item.KindTodo, userID, item.ViewPending, mock.Anything).
			Return(nil, service.NewRelatedNotFound("account", uuid.New().String()))

		handler := handlers.NewItemHandler(mockService)
		body := []byte(`{"name": "Встреча", "related": "account_` + uuid.New().String() + `"}`)
		req := newRequest("POST", "/todos", body, userID, map[string]string{"entity": "todos"})
		w := httptest.NewRecorder()

		handler.Create(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "RELATED_NOT_FOUND")
		mockService.AssertExpectations(t)
	})
}

// TestItemHandler_Update тестирует обновление записи
func TestItemHandler_Update(t *testing.T) {
	userID := uuid.New()
	itemID := uuid.New()

	t.Run("success - update with emptied bucket", func(t *testing.T) {
		mockService := new(MockItemsService)
		emptied := bucket.Overdue
		updated := &item.Item{
			UUID:   itemID,
			Kind:   item.KindTodo,
			UserID: userID,
			Name:   "Задача",
			Bucket: bucket.DueToday,
		}
		mockService.On("Update", mock.Anything, item.KindTodo, userID, item.ViewPending, itemID, mock.Anything).
			Return(&service.MutationResult{
				Item:        updated,
				EmptyBucket: &emptied,
				Filters:     filter.Parse("no_date"),
			}, nil)

		handler := handlers.NewItemHandler(mockService)
		body := []byte(`{"bucket": "specific_time", "due_at": "2025-01-15T00:00:00Z"}`)
		req := newRequest("PUT", "/todos/"+itemID.String(), body, userID,
			map[string]string{"entity": "todos", "id": itemID.String()})
		w := httptest.NewRecorder()

		handler.Update(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data dto.MutationResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "overdue", response.Data.EmptyBucket)
		mockService.AssertExpectations(t)
	})

	t.Run("error - version conflict", func(t *testing.T) {
		mockService := new(MockItemsService)
		mockService.On("Update", mock.Anything, item.KindTodo, userID, item.ViewPending, itemID, mock.Anything).
			Return(nil, service.NewVersionConflict(itemID.String()))

		handler := handlers.NewItemHandler(mockService)
		req := newRequest("PUT", "/todos/"+itemID.String(), []byte(`{}`), userID,
			map[string]string{"entity": "todos", "id": itemID.String()})
		w := httptest.NewRecorder()

		handler.Update(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "VERSION_CONFLICT")
		mockService.AssertExpectations(t)
	})

	t.Run("error - bad id", func(t *testing.T) {
		handler := handlers.NewItemHandler(new(MockItemsService))
		req := newRequest("PUT", "/todos/abc", []byte(`{}`), userID,
			map[string]string{"entity": "todos", "id": "abc"})
		w := httptest.NewRecorder()

		handler.Update(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestItemHandler_Complete тестирует завершение записи
func TestItemHandler_Complete(t *testing.T) {
	userID := uuid.New()
	itemID := uuid.New()

	t.Run("success - complete with bucket hint", func(t *testing.T) {
		mockService := new(MockItemsService)
		now := time.Now()
		completed := &item.Item{
			UUID:        itemID,
			Kind:        item.KindSubscribe,
			UserID:      userID,
			Bucket:      bucket.Completed,
			CompletedAt: &now,
		}
		emptied := bucket.Overdue
		mockService.On("Complete", mock.Anything, item.KindSubscribe, userID, item.ViewPending, itemID, bucket.Overdue).
			Return(&service.MutationResult{
				Item:        completed,
				EmptyBucket: &emptied,
				Filters:     filter.Set{},
			}, nil)

		handler := handlers.NewItemHandler(mockService)
		body := []byte(`{"bucket": "overdue"}`)
		req := newRequest("PUT", "/subscribes/"+itemID.String()+"/complete", body, userID,
			map[string]string{"entity": "subscribes", "id": itemID.String()})
		w := httptest.NewRecorder()

		handler.Complete(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data dto.MutationResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.True(t, response.Data.Item.Completed)
		assert.Equal(t, "overdue", response.Data.EmptyBucket)
		mockService.AssertExpectations(t)
	})

	t.Run("success - uncomplete", func(t *testing.T) {
		mockService := new(MockItemsService)
		restored := &item.Item{
			UUID:   itemID,
			Kind:   item.KindSubscribe,
			UserID: userID,
			Bucket: bucket.NoDate,
		}
		mockService.On("Uncomplete", mock.Anything, item.KindSubscribe, userID, item.ViewPending, itemID, bucket.Bucket("")).
			Return(&service.MutationResult{Item: restored, Filters: filter.Set{}}, nil)

		handler := handlers.NewItemHandler(mockService)
		req := newRequest("PUT", "/subscribes/"+itemID.String()+"/uncomplete", nil, userID,
			map[string]string{"entity": "subscribes", "id": itemID.String()})
		w := httptest.NewRecorder()

		handler.Uncomplete(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("error - not found", func(t *testing.T) {
		mockService := new(MockItemsService)
		mockService.On("Complete", mock.Anything, item.KindSubscribe, userID, item.ViewPending, itemID, bucket.Bucket("")).
			Return(nil, service.NewNotFound("subscribe", itemID.String()))

		handler := handlers.NewItemHandler(mockService)
		req := newRequest("PUT", "/subscribes/"+itemID.String()+"/complete", nil, userID,
			map[string]string{"entity": "subscribes", "id": itemID.String()})
		w := httptest.NewRecorder()

		handler.Complete(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockService.AssertExpectations(t)
	})
}

// TestItemHandler_Delete тестирует удаление записи
func TestItemHandler_Delete(t *testing.T) {
	userID := uuid.New()
	itemID := uuid.New()

	t.Run("success - delete with bucket query", func(t *testing.T) {
		mockService := new(MockItemsService)
		deleted := &item.Item{
			UUID:   itemID,
			Kind:   item.KindTodo,
			UserID: userID,
			Bucket: bucket.DueToday,
		}
		mockService.On("Delete", mock.Anything, item.KindTodo, userID, item.ViewPending, itemID, bucket.DueToday).
			Return(&service.MutationResult{Item: deleted, Filters: filter.Set{}}, nil)

		handler := handlers.NewItemHandler(mockService)
		req := newRequest("DELETE", "/todos/"+itemID.String()+"?bucket=due_today", nil, userID,
			map[string]string{"entity": "todos", "id": itemID.String()})
		w := httptest.NewRecorder()

		handler.Delete(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})
}

// TestItemHandler_Filter тестирует переключение фильтров
func TestItemHandler_Filter(t *testing.T) {
	userID := uuid.New()

	t.Run("success - toggle on", func(t *testing.T) {
		mockService := new(MockItemsService)
		mockService.On("ToggleFilter", mock.Anything, item.KindTodo, userID, item.ViewPending, bucket.Overdue, true).
			Return(filter.Parse("overdue"), nil)

		handler := handlers.NewItemHandler(mockService)
		body := []byte(`{"bucket": "overdue", "checked": true}`)
		req := newRequest("POST", "/todos/filter", body, userID, map[string]string{"entity": "todos"})
		w := httptest.NewRecorder()

		handler.Filter(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "overdue")
		mockService.AssertExpectations(t)
	})

	t.Run("error - unknown bucket", func(t *testing.T) {
		mockService := new(MockItemsService)
		mockService.On("ToggleFilter", mock.Anything, item.KindTodo, userID, item.ViewPending, bucket.Bucket("someday"), true).
			Return(filter.Set{}, service.NewValidationError("filter", "неизвестная корзина someday"))

		handler := handlers.NewItemHandler(mockService)
		body := []byte(`{"bucket": "someday", "checked": true}`)
		req := newRequest("POST", "/todos/filter", body, userID, map[string]string{"entity": "todos"})
		w := httptest.NewRecorder()

		handler.Filter(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertExpectations(t)
	})
}

// TestItemHandler_Options тестирует выдачу вариантов формы
func TestItemHandler_Options(t *testing.T) {
	handler := handlers.NewItemHandler(new(MockItemsService))
	req := newRequest("GET", "/todos/options", nil, uuid.New(), map[string]string{"entity": "todos"})
	w := httptest.NewRecorder()

	handler.Options(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "due_this_week")
	assert.Contains(t, w.Body.String(), "follow_up")
	// overdue не выбирается пользователем
	assert.NotContains(t, w.Body.String(), `"value":"overdue"`)
}

// TestItemHandler_Export тестирует выгрузки
func TestItemHandler_Export(t *testing.T) {
	userID := uuid.New()
	due := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	result := &service.IndexResult{
		View: item.ViewPending,
		Groups: repository.Grouped{
			bucket.DueNextWeek: {{
				UUID:   uuid.New(),
				Kind:   item.KindTodo,
				UserID: userID,
				Name:   "Подготовить отчёт",
				Bucket: bucket.DueNextWeek,
				DueAt:  &due,
			}},
		},
	}

	tests := []struct {
		name        string
		call        func(h handlers.ItemHandler, w http.ResponseWriter, r *http.Request)
		contentType string
		contains    string
	}{
		{
			name:        "csv",
			call:        func(h handlers.ItemHandler, w http.ResponseWriter, r *http.Request) { h.ExportCSV(w, r) },
			contentType: "text/csv",
			contains:    "Подготовить отчёт",
		},
		{
			name:        "xml",
			call:        func(h handlers.ItemHandler, w http.ResponseWriter, r *http.Request) { h.ExportXML(w, r) },
			contentType: "application/xml",
			contains:    "<bucket>due_next_week</bucket>",
		},
		{
			name:        "xls",
			call:        func(h handlers.ItemHandler, w http.ResponseWriter, r *http.Request) { h.ExportXLS(w, r) },
			contentType: "application/vnd.ms-excel",
			contains:    "<td>due_next_week</td>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockItemsService)
			mockService.On("Index", mock.Anything, item.KindTodo, userID, item.ViewPending).
				Return(result, nil)

			handler := handlers.NewItemHandler(mockService)
			req := newRequest("GET", "/todos/export."+tt.name, nil, userID, map[string]string{"entity": "todos"})
			w := httptest.NewRecorder()

			tt.call(handler, w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), tt.contentType)
			assert.Contains(t, w.Header().Get("Content-Disposition"), "todos."+tt.name)
			assert.Contains(t, w.Body.String(), tt.contains)
			mockService.AssertExpectations(t)
		})
	}
}
