// Package invite generates batch invite codes, short ids and share links.
package invite

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
)

const (
	alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	codeLength = 6
	idLength   = 9
	shareBase  = "https://wa.me/?text="
)

// Generator draws base-36 strings. Codes are not checked for collisions.
type Generator struct {
	intN func(n int) int
}

// NewGenerator returns a generator backed by the process-wide pseudo random source.
func NewGenerator() *Generator {
	return &Generator{intN: rand.IntN}
}

// NewSeededGenerator returns a reproducible generator for tests and fixtures.
func NewSeededGenerator(seed uint64) *Generator {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Generator{intN: r.IntN}
}

// Code returns a 6 character uppercase alphanumeric invite code.
func (g *Generator) Code() string {
	return strings.ToUpper(g.draw(codeLength))
}

// ID returns a 9 character lowercase base-36 identifier.
func (g *Generator) ID() string {
	return g.draw(idLength)
}

func (g *Generator) draw(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[g.intN(len(alphabet))])
	}
	return b.String()
}

var defaultGenerator = NewGenerator()

// Generate returns an invite code from the default generator.
func Generate() string {
	return defaultGenerator.Code()
}

// NewID returns an identifier from the default generator.
func NewID() string {
	return defaultGenerator.ID()
}

// ShareMessage is the text sent along with an invite code.
func ShareMessage(batchName, code string) string {
	return fmt.Sprintf("🎓 Join \"%s\" batch on EduClass!\n\nInvite Code: %s\n\nDownload the app and use this code to join the batch.", batchName, code)
}

// ShareLink builds the WhatsApp share URL for a batch invite.
func ShareLink(batchName, code string) string {
	return shareBase + encodeURIComponent(ShareMessage(batchName, code))
}

// encodeURIComponent mirrors the browser function: spaces become %20 and the
// marks -_.!~*'() stay literal.
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	replacer := strings.NewReplacer(
		"+", "%20",
		"%21", "!",
		"%27", "'",
		"%28", "(",
		"%29", ")",
		"%2A", "*",
		"%7E", "~",
	)
	return replacer.Replace(escaped)
}
