package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/handlers/dto"
	"crmTracker/internal/logger"
	"crmTracker/internal/models/item"
	"crmTracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ItemHandler struct {
	Service ItemsService
}

func NewItemHandler(svc ItemsService) ItemHandler {
	return ItemHandler{
		Service: svc,
	}
}

// entityKind разбирает сегмент коллекции из URL: /subscribes или /todos
func entityKind(r *http.Request) (item.Kind, bool) {
	switch chi.URLParam(r, "entity") {
	case "subscribes":
		return item.KindSubscribe, true
	case "todos":
		return item.KindTodo, true
	default:
		return "", false
	}
}

func requestUser(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.Header.Get("X-User-ID"))
}

// requestView читает ?view= и молча откатывается на первый допустимый
// вид при неизвестном значении
func requestView(r *http.Request) item.View {
	return item.NormalizeView(r.URL.Query().Get("view"))
}

// itemRequest - общий разбор entity/user/id для операций над одной
// записью
func (s *ItemHandler) itemRequest(w http.ResponseWriter, r *http.Request, withID bool) (item.Kind, uuid.UUID, uuid.UUID, bool) {
	kind, ok := entityKind(r)
	if !ok {
		logger.Warn("HTTP: Неизвестная коллекция",
			zap.String("entity", chi.URLParam(r, "entity")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusNotFound, "неизвестная коллекция")
		return "", uuid.Nil, uuid.Nil, false
	}

	user, err := requestUser(r)
	if err != nil || user == uuid.Nil {
		logger.Warn("HTTP: Не удалось получить пользователя",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnauthorized, "заголовок X-User-ID обязателен")
		return "", uuid.Nil, uuid.Nil, false
	}

	var id uuid.UUID
	if withID {
		id, err = uuid.Parse(chi.URLParam(r, "id"))
		if err != nil || id == uuid.Nil {
			logger.Warn("HTTP: Неверное значение id",
				zap.Error(err),
				zap.String("client_ip", r.RemoteAddr))
			responseWithError(w, http.StatusBadRequest, "не удалось получить id")
			return "", uuid.Nil, uuid.Nil, false
		}
	}

	return kind, user, id, true
}

func (s *ItemHandler) Index(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	kind, user, _, ok := s.itemRequest(w, r, false)
	if !ok {
		return
	}
	view := requestView(r)

	result, err := s.Service.Index(r.Context(), kind, user, view)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "index"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Список получен",
		zap.String("kind", string(kind)),
		zap.String("view", string(view)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("data", dto.FromIndex(result, s.Service.Buckets())))
}

func (s *ItemHandler) Show(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	kind, user, id, ok := s.itemRequest(w, r, true)
	if !ok {
		return
	}

	it, err := s.Service.GetByID(r.Context(), kind, user, id)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "show"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Запись получена",
		zap.String("item_id", it.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("item", dto.FromItem(it)))
}

func (s *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	kind, user, _, ok := s.itemRequest(w, r, false)
	if !ok {
		return
	}
	view := requestView(r)

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	if request.Name == "" {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "name"),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "название не может быть пустым")
		return
	}

	result, err := s.Service.Create(r.Context(), kind, user, view, request.ToInput())
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "create"),
			zap.String("client_ip", r.RemoteAddr),
			zap.Duration("ms", time.Since(start)))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Запись создана",
		zap.String("item_id", result.Item.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("data", dto.FromMutation(result)))
}

func (s *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	kind, user, id, ok := s.itemRequest(w, r, true)
	if !ok {
		return
	}
	view := requestView(r)

	var request dto.UpdateItemRequest

	decoder := json.NewDecoder(r.Body)
	defer r.Body.Close()

	if err := decoder.Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверно переданы параметры обновления: "+err.Error())
		return
	}

	result, err := s.Service.Update(r.Context(), kind, user, view, id, request.ToOptions()...)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: ошибка в Service", err,
			zap.String("operation", "update"),
			zap.String("client_addr", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Запись обновлена",
		zap.String("item_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("data", dto.FromMutation(result)))
}

func (s *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	kind, user, id, ok := s.itemRequest(w, r, true)
	if !ok {
		return
	}
	view := requestView(r)
	oldBucket := bucket.Bucket(r.URL.Query().Get("bucket"))

	result, err := s.Service.Delete(r.Context(), kind, user, view, id, oldBucket)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: ошибка в Service", err,
			zap.String("operation", "delete"),
			zap.String("client_addr", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Запись удалена",
		zap.String("item_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("data", dto.FromMutation(result)))
}

func (s *ItemHandler) Complete(w http.ResponseWriter, r *http.Request) {
	s.completion(w, r, "complete")
}

func (s *ItemHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	s.completion(w, r, "uncomplete")
}

func (s *ItemHandler) completion(w http.ResponseWriter, r *http.Request, operation string) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	kind, user, id, ok := s.itemRequest(w, r, true)
	if !ok {
		return
	}
	view := requestView(r)

	// тело опционально: клиент может сообщить, из какой корзины
	// элемент ушёл
	var request dto.BucketStateRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&request)
		r.Body.Close()
	}

	var result *service.MutationResult
	var err error
	if operation == "complete" {
		result, err = s.Service.Complete(r.Context(), kind, user, view, id, bucket.Bucket(request.Bucket))
	} else {
		result, err = s.Service.Uncomplete(r.Context(), kind, user, view, id, bucket.Bucket(request.Bucket))
	}
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: ошибка в Service", err,
			zap.String("operation", operation),
			zap.String("client_addr", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Состояние записи изменено",
		zap.String("item_id", id.String()),
		zap.String("operation", operation),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("data", dto.FromMutation(result)))
}

func (s *ItemHandler) Filter(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	kind, user, _, ok := s.itemRequest(w, r, false)
	if !ok {
		return
	}
	view := requestView(r)

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.ToggleFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	set, err := s.Service.ToggleFilter(r.Context(), kind, user, view, bucket.Bucket(request.Bucket), request.Checked)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: ошибка в Service", err,
			zap.String("operation", "filter"),
			zap.String("client_addr", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filters := make([]string, 0, set.Len())
	for _, b := range set.Labels() {
		filters = append(filters, string(b))
	}

	logger.Info("HTTP_OUT: Фильтры обновлены",
		zap.Strings("filters", filters),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("filters", filters))
}

// Options отдаёт корзины, доступные для выбора в форме
func (s *ItemHandler) Options(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if _, ok := entityKind(r); !ok {
		responseWithError(w, http.StatusNotFound, "неизвестная коллекция")
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("buckets", s.Service.Buckets().Options()),
		toPayload("categories", item.CategoryOptions()),
	)
}

func (s *ItemHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.Service.HealthCheck(r.Context()); err != nil {
		responseWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}
