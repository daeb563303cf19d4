package securecodec

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"aegis/pkg/faults"
)

// fieldPrefix marks a JSON string value as an encrypted field.
const fieldPrefix = "aegis.enc.v1:"

// EncryptSensitiveFields encrypts the named fields of a JSON document in
// place, leaving the rest of the document untouched. Fields use gjson path
// syntax, so nested fields ("card.number") work. Missing fields are skipped.
func (c *Codec) EncryptSensitiveFields(body []byte, fields []string) ([]byte, error) {
	out := body
	for _, field := range fields {
		value := gjson.GetBytes(out, field)
		if !value.Exists() {
			continue
		}
		env, err := c.EncryptBytes([]byte(value.Raw))
		if err != nil {
			return nil, err
		}
		encoded, err := encodeFieldEnvelope(env)
		if err != nil {
			return nil, err
		}
		out, err = sjson.SetBytes(out, field, encoded)
		if err != nil {
			return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not rewrite field "+field)
		}
	}
	return out, nil
}

// DecryptSensitiveFields reverses EncryptSensitiveFields. Fields that do not
// carry the encrypted marker are left as-is.
func (c *Codec) DecryptSensitiveFields(body []byte, fields []string) ([]byte, error) {
	out := body
	for _, field := range fields {
		value := gjson.GetBytes(out, field)
		if !value.Exists() || value.Type != gjson.String {
			continue
		}
		if !strings.HasPrefix(value.Str, fieldPrefix) {
			continue
		}
		env, err := decodeFieldEnvelope(value.Str)
		if err != nil {
			return nil, err
		}
		raw, err := c.DecryptResponse(env)
		if err != nil {
			return nil, err
		}
		out, err = sjson.SetRawBytes(out, field, raw)
		if err != nil {
			return nil, faults.Wrap(err, faults.CodeDecryptionError, "could not rewrite field "+field)
		}
	}
	return out, nil
}

func encodeFieldEnvelope(env *Envelope) (string, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return "", faults.Wrap(err, faults.CodeEncryptionError, "could not encode field envelope")
	}
	return fieldPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

func decodeFieldEnvelope(value string) (*Envelope, error) {
	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, fieldPrefix))
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeDecryptionError, "invalid field envelope encoding")
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, faults.Wrap(err, faults.CodeDecryptionError, "invalid field envelope")
	}
	return &env, nil
}
