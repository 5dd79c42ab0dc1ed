package gateway

import (
	"encoding/json"
	"net/url"
)

// Body is a request payload together with its content type.
type Body interface {
	encode() ([]byte, string, error)
}

type jsonBody struct {
	v any
}

func (b jsonBody) encode() ([]byte, string, error) {
	raw, err := json.Marshal(b.v)
	return raw, contentTypeJSON, err
}

type formBody struct {
	values url.Values
}

func (b formBody) encode() ([]byte, string, error) {
	return []byte(b.values.Encode()), contentTypeForm, nil
}

// JSON encodes v as application/json.
func JSON(v any) Body {
	return jsonBody{v: v}
}

// Form encodes values as application/x-www-form-urlencoded.
func Form(values url.Values) Body {
	return formBody{values: values}
}

func asBody(body any) Body {
	switch b := body.(type) {
	case nil:
		return nil
	case Body:
		return b
	case url.Values:
		return Form(b)
	}
	return JSON(body)
}
