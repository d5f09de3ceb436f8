package cachestore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever the on-disk layout changes. Files written
// with any other version are discarded on load, never migrated in place.
const SchemaVersion = 2

var errBadSignature = errors.New("cache signature mismatch")

// diskStore is the self-describing durable representation
type diskStore struct {
	Version     int              `json:"version"`
	LastUpdated time.Time        `json:"last_updated"`
	Entries     map[string]Entry `json:"entries"`
}

// signedEnvelope wraps the store when a signing key is configured
type signedEnvelope struct {
	Signature string          `json:"signature"`
	Store     json.RawMessage `json:"store"`
}

func emptyStore() *diskStore {
	return &diskStore{
		Version: SchemaVersion,
		Entries: make(map[string]Entry),
	}
}

func encode(st *diskStore, key []byte) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache: %w", err)
	}
	if len(key) == 0 {
		return data, nil
	}

	env := signedEnvelope{
		Signature: hex.EncodeToString(sign(data, key)),
		Store:     data,
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signed cache: %w", err)
	}
	return out, nil
}

func decode(data []byte, key []byte) (*diskStore, error) {
	if len(key) > 0 {
		var env signedEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signed cache: %w", err)
		}
		want, err := hex.DecodeString(env.Signature)
		if err != nil || !hmac.Equal(want, sign(env.Store, key)) {
			return nil, errBadSignature
		}
		data = env.Store
	}

	var st diskStore
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache: %w", err)
	}
	if st.Entries == nil {
		st.Entries = make(map[string]Entry)
	}
	return &st, nil
}

func sign(data, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
