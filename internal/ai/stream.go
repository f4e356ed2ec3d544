package ai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/mrz1836/deskpilot/internal/constants"
)

// StreamChunk is one NDJSON line of a streamed generate response.
// Some model families put their text in Thinking instead of Response.
type StreamChunk struct {
	Model    string `json:"model,omitempty"`
	Response string `json:"response,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Token returns the text carried by the chunk: Response, else Thinking.
func (c StreamChunk) Token() string {
	if c.Response != "" {
		return c.Response
	}
	return c.Thinking
}

// ParseStreamLine parses one line of NDJSON. It returns false for blank or
// undecodable lines, which the caller skips.
func ParseStreamLine(line []byte) (StreamChunk, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return StreamChunk{}, false
	}
	var chunk StreamChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return StreamChunk{}, false
	}
	return chunk, true
}

// StreamResult summarizes a consumed stream.
type StreamResult struct {
	Text    string
	Tokens  int
	Lines   int
	Skipped int
	Done    bool
	Error   string
}

// ReadStream consumes NDJSON from r, passing each token to onToken, until a
// chunk with done:true, EOF, or an onToken error. Lines up to
// constants.MaxStreamLineBytes are accepted.
func ReadStream(r io.Reader, onToken TokenFunc) (StreamResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), constants.MaxStreamLineBytes)

	var (
		res StreamResult
		sb  strings.Builder
	)
	for scanner.Scan() {
		res.Lines++
		chunk, ok := ParseStreamLine(scanner.Bytes())
		if !ok {
			if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
				res.Skipped++
			}
			continue
		}
		if chunk.Error != "" {
			res.Error = chunk.Error
		}
		if tok := chunk.Token(); tok != "" {
			sb.WriteString(tok)
			res.Tokens++
			if onToken != nil {
				if err := onToken(tok); err != nil {
					res.Text = sb.String()
					return res, err
				}
			}
		}
		if chunk.Done {
			res.Done = true
			break
		}
	}
	res.Text = sb.String()
	return res, scanner.Err()
}
