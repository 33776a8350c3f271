package deploy

import (
	"encoding/base64"
	"encoding/json"
)

// CookieName carries the upload session between PUTs.
const CookieName = "jarvault-session"

// maxSessionDirs bounds the cookie size; least-recently-used staging
// dirs fall off the tail.
const maxSessionDirs = 16

// Session is the client-held upload state: staging directory paths,
// most-recently-used first.
type Session struct {
	UploadDirs []string `json:"upload-dirs"`
}

// DecodeSession parses a session cookie value. Garbage yields an empty
// session rather than an error; a client with a stale cookie just gets
// fresh staging directories.
func DecodeSession(value string) *Session {
	s := &Session{}
	if value == "" {
		return s
	}
	raw, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return &Session{}
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return &Session{}
	}
	return s
}

// Encode serializes the session for the cookie.
func (s *Session) Encode() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(raw)
}

// Touch moves dir to the front of the session's directory list, adding
// it when absent.
func (s *Session) Touch(dir string) {
	out := make([]string, 0, len(s.UploadDirs)+1)
	out = append(out, dir)
	for _, d := range s.UploadDirs {
		if d != dir {
			out = append(out, d)
		}
	}
	if len(out) > maxSessionDirs {
		out = out[:maxSessionDirs]
	}
	s.UploadDirs = out
}
