package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
)

// SessionID derives the session id of one attempt: the hex sha256 of
// "<input>:<attempt>".
func SessionID(input string, attempt int) string {
	sum := sha256.Sum256([]byte(input + ":" + strconv.Itoa(attempt)))
	return hex.EncodeToString(sum[:])
}

// ContentSessionID is SessionID for multi-part input. Inline attachments are
// folded into the hash so two photos with the same prompt get different ids.
func ContentSessionID(content core.Content, attempt int) string {
	input := model.ContentText(content)

	for _, p := range content.Parts {
		fp, ok := p.(core.FilePart)
		if !ok {
			continue
		}

		if fp.File.IsInline() {
			sum := sha256.Sum256(fp.File.Data)
			input += ":" + hex.EncodeToString(sum[:8])
		} else if fp.File.URI != "" {
			input += ":" + fp.File.URI
		}
	}

	return SessionID(input, attempt)
}
