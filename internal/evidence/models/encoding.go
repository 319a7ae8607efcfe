package models

import (
	"encoding/base64"
	"net/http"
	"strings"

	dErrors "kycbuster/pkg/domain-errors"
)

// EncodedMedia is Media as it travels in JSON: base64, either bare or as a
// data URL ("data:image/jpeg;base64,...").
type EncodedMedia struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// Encode returns m as bare base64 with its MIME type.
func Encode(m Media) EncodedMedia {
	return EncodedMedia{MIMEType: m.MIMEType, Data: base64.StdEncoding.EncodeToString(m.Data)}
}

// Decode returns the payload. A missing MIME type is taken from the data URL
// prefix, then sniffed from the content. MIME parameters are dropped. field
// names the input in validation errors.
func (e EncodedMedia) Decode(field string) (Media, error) {
	mimeType := strings.TrimSpace(e.MIMEType)
	payload := strings.TrimSpace(e.Data)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return Media{}, dErrors.New(dErrors.CodeValidation, field+" must be a base64 data URL")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		payload = data
	}
	if payload == "" {
		return Media{}, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Media{}, dErrors.New(dErrors.CodeValidation, field+" is not valid base64")
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(raw)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return Media{MIMEType: strings.ToLower(strings.TrimSpace(mimeType)), Data: raw}, nil
}
