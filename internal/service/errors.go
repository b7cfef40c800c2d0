package service

import "fmt"

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error { return b.Err }

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(entity string, id string) *BusinessError {
	return &BusinessError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s не найден(а)", entity, id),
		Details: map[string]any{
			"entity": entity,
			"id":     id,
		},
	}
}

// NewRelatedNotFound - связанная запись CRM не существует; отдельный
// ответ, не общий сбой.
func NewRelatedNotFound(kind string, id string) *BusinessError {
	return &BusinessError{
		Code:    "RELATED_NOT_FOUND",
		Message: fmt.Sprintf("связанная запись %s %s не найдена", kind, id),
		Details: map[string]any{
			"asset_kind": kind,
			"asset_id":   id,
		},
	}
}

func NewInvalidAssetKind(kind string) *BusinessError {
	return &BusinessError{
		Code:    "INVALID_ASSET_KIND",
		Message: fmt.Sprintf("неизвестный вид связанной записи '%s'", kind),
		Details: map[string]any{
			"asset_kind": kind,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewVersionConflict(id string) *BusinessError {
	return &BusinessError{
		Code:    "VERSION_CONFLICT",
		Message: fmt.Sprintf("запись %s изменена кем-то ещё", id),
		Details: map[string]any{
			"id": id,
		},
	}
}
