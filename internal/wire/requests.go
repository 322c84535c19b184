package wire

import (
	"bytes"
	"encoding/binary"
)

// KV is a single key/value pair as carried by MultiPut requests and
// MultiGet responses.
type KV struct {
	Key   string
	Value []byte
	Found bool // only meaningful in MultiGet responses
}

// AuthRequest / RegisterRequest share the same payload shape: utf(user) utf(pw).
type AuthRequest struct {
	User     string
	Password string
}

func DecodeAuthRequest(payload []byte) (AuthRequest, error) {
	d := newDecoder(payload)
	user, err := d.utf()
	if err != nil {
		return AuthRequest{}, err
	}
	pw, err := d.utf()
	if err != nil {
		return AuthRequest{}, err
	}
	if err := d.finish(); err != nil {
		return AuthRequest{}, err
	}
	return AuthRequest{User: user, Password: pw}, nil
}

// EncodeBoolReply builds the Auth/Register reply payload. Auth failure is
// represented by an empty payload (ok=false, forceEmpty=true); Register
// failure is a one-byte boolean false, per §4.5/§7.
func EncodeBoolReply(ok bool, forceEmptyOnFailure bool) []byte {
	if !ok && forceEmptyOnFailure {
		return nil
	}
	if ok {
		return []byte{1}
	}
	return []byte{0}
}

// PutRequest: utf(key) i32(len) bytes(len)
type PutRequest struct {
	Key   string
	Value []byte
}

func DecodePutRequest(payload []byte) (PutRequest, error) {
	d := newDecoder(payload)
	key, err := d.utf()
	if err != nil {
		return PutRequest{}, err
	}
	val, err := d.bytesField()
	if err != nil {
		return PutRequest{}, err
	}
	if err := d.finish(); err != nil {
		return PutRequest{}, err
	}
	return PutRequest{Key: key, Value: val}, nil
}

// GetRequest: utf(key)
func DecodeGetRequest(payload []byte) (string, error) {
	d := newDecoder(payload)
	key, err := d.utf()
	if err != nil {
		return "", err
	}
	if err := d.finish(); err != nil {
		return "", err
	}
	return key, nil
}

// EncodeGetReply builds i32(len) bytes(len); len=0 and no bytes for absent.
func EncodeGetReply(value []byte, found bool) []byte {
	var buf bytes.Buffer
	if !found {
		PutBytes(&buf, nil)
		return buf.Bytes()
	}
	PutBytes(&buf, value)
	return buf.Bytes()
}

// MultiPutRequest: i32(n) [utf(k) i32(len) bytes(len)] x n
func DecodeMultiPutRequest(payload []byte) ([]KV, error) {
	d := newDecoder(payload)
	n, err := d.int32Field()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrTruncated
	}
	pairs := make([]KV, 0, n)
	for i := int32(0); i < n; i++ {
		key, err := d.utf()
		if err != nil {
			return nil, err
		}
		val, err := d.bytesField()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, KV{Key: key, Value: val})
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// MultiGetRequest: i32(n) [utf(k)] x n
func DecodeMultiGetRequest(payload []byte) ([]string, error) {
	d := newDecoder(payload)
	n, err := d.int32Field()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrTruncated
	}
	keys := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		key, err := d.utf()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return keys, nil
}

// EncodeMultiGetReply builds i32(n) [utf(k) i32(len) bytes(len)] x n.
func EncodeMultiGetReply(results []KV) []byte {
	var buf bytes.Buffer
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(results)))
	buf.Write(header)
	for _, kv := range results {
		PutUTF(&buf, kv.Key)
		if kv.Found {
			PutBytes(&buf, kv.Value)
		} else {
			PutBytes(&buf, nil)
		}
	}
	return buf.Bytes()
}

// GetWhenRequest: utf(key_target) utf(key_cond) i32(len) bytes(len)
type GetWhenRequest struct {
	KeyTarget string
	KeyCond   string
	ValueCond []byte
}

func DecodeGetWhenRequest(payload []byte) (GetWhenRequest, error) {
	d := newDecoder(payload)
	target, err := d.utf()
	if err != nil {
		return GetWhenRequest{}, err
	}
	cond, err := d.utf()
	if err != nil {
		return GetWhenRequest{}, err
	}
	val, err := d.bytesField()
	if err != nil {
		return GetWhenRequest{}, err
	}
	if err := d.finish(); err != nil {
		return GetWhenRequest{}, err
	}
	return GetWhenRequest{KeyTarget: target, KeyCond: cond, ValueCond: val}, nil
}
