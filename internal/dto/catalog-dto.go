package dto

import (
	"bytes"
	"encoding/json"

	apperrors "delivery-system/pkg/errors"
)

// CatalogItemDTO - строка справочника в ответе: {"id": .., "name": ..} или {"id": .., "number": ..}.
type CatalogItemDTO struct {
	ID         uint64
	Label      string
	LabelField string
}

func (c CatalogItemDTO) MarshalJSON() ([]byte, error) {
	field := c.LabelField
	if field == "" {
		field = "name"
	}
	return json.Marshal(map[string]interface{}{
		"id":  c.ID,
		field: c.Label,
	})
}

// CatalogPayloadDTO - тело POST/PUT/PATCH справочника. Label == nil, если поле не передано.
type CatalogPayloadDTO struct {
	Label *string
}

// DecodeCatalogPayload читает поле-подпись справочника (name или number) из JSON.
func DecodeCatalogPayload(body []byte, labelField string) (CatalogPayloadDTO, error) {
	var payload CatalogPayloadDTO
	raw, err := decodeObject(body)
	if err != nil {
		return payload, err
	}

	value, ok := raw[labelField]
	if !ok {
		return payload, nil
	}
	if isNull(value) {
		return payload, apperrors.FieldError(labelField, MsgNull)
	}
	s, ok := decodeString(value)
	if !ok {
		return payload, apperrors.FieldError(labelField, MsgInvalidString)
	}
	payload.Label = &s
	return payload, nil
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	raw := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(body)) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrMalformedBody
	}
	return raw, nil
}
