package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"

	"golang.org/x/text/unicode/norm"
)

// Key addresses one cached result: a resource plus its canonical parameters,
// inside the scope of the principal the data was loaded for. Keys are
// comparable; two keys are equal exactly when all three parts are.
type Key struct {
	Scope    string
	Resource string
	Params   string
}

const detailParam = "_id"

// NewKey canonicalises values: keys are sorted and put in Unicode NFC so
// composed and decomposed Hangul hit the same entry. Values are otherwise kept
// as sent; whitespace is significant to the backend. The key is unscoped.
func NewKey(resource string, values url.Values) Key {
	canon := make(url.Values, len(values))
	for k, vs := range values {
		nk := norm.NFC.String(k)
		for _, v := range vs {
			canon[nk] = append(canon[nk], norm.NFC.String(v))
		}
	}
	return Key{Resource: resource, Params: canon.Encode()}
}

// In returns k inside scope.
func (k Key) In(scope string) Key {
	k.Scope = scope
	return k
}

// DetailParams are the parameters addressing a single record.
func DetailParams(id string) url.Values {
	return url.Values{detailParam: {id}}
}

// DetailKey addresses a single record of resource.
func DetailKey(resource, id string) Key {
	return NewKey(resource, DetailParams(id))
}

// Hash is a stable digest of the key used for external stores.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(k.Scope + "\x00" + k.Resource + "\x00" + k.Params))
	return hex.EncodeToString(sum[:])
}

// String renders the key for logs. The scope is left out.
func (k Key) String() string {
	if k.Params == "" {
		return k.Resource
	}
	return k.Resource + "?" + k.Params
}

type scopeKey struct{}

// WithScope marks ctx as acting for principal. Cached results are shared only
// between callers of the same scope; the backend authorises every read by
// bearer token, so two principals may see different rows.
func WithScope(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, scopeKey{}, principal)
}

// ScopeOf returns the principal set by WithScope, or "" when none was set.
func ScopeOf(ctx context.Context) string {
	scope, _ := ctx.Value(scopeKey{}).(string)
	return scope
}
