package cache

import (
	"net/url"
	"strings"
	"time"
)

// KeySeparator separates the namespace from the rest of a key.
const KeySeparator = "::"

// paramSeparator separates the subject from the read parameters.  Subjects
// and parameters are query-escaped, so neither can contain it.
const paramSeparator = ":"

// Namespace groups keys that share a TTL.
type Namespace struct {
	Name string
	TTL  time.Duration
}

// Key identifies one cached read.  Subject is the entity the read is about
// (a booking id, a username, a listing id) and is the unit of invalidation.
// Params distinguish different reads of the same subject, such as page and
// size.
type Key struct {
	NS      Namespace
	Subject string
	Params  []string
}

// NewKey builds a Key.
func NewKey(ns Namespace, subject string, params ...string) Key {
	return Key{NS: ns, Subject: subject, Params: params}
}

// String renders the key as "<ns>::<subject>[:<p1>:<p2>...]".
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.NS.Name)
	b.WriteString(KeySeparator)
	b.WriteString(url.QueryEscape(k.Subject))
	for _, p := range k.Params {
		b.WriteString(paramSeparator)
		b.WriteString(url.QueryEscape(p))
	}
	return b.String()
}

// subjectPattern is the SCAN MATCH pattern for every parameterised key of a
// subject.  Escaping guarantees the pattern carries no glob metacharacters
// other than the trailing '*'.
func subjectPattern(ns Namespace, subject string) string {
	return ns.Name + KeySeparator + url.QueryEscape(subject) + paramSeparator + "*"
}

// generationKey holds the invalidation counter of a subject.
func generationKey(ns Namespace, subject string) string {
	return "gen" + KeySeparator + ns.Name + KeySeparator + url.QueryEscape(subject)
}
