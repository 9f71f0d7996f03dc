// Package signals carries login messages over a JSON-lines stream. Each line
// is an envelope {"type": "...", "message": {...}}.
package signals

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/jrsteele09/go-homeserver-login/internal/errors"
	"github.com/jrsteele09/go-homeserver-login/login"
	"github.com/rs/zerolog"
)

// Envelope types
const (
	TypeCreateConnection  = "create_connection"
	TypeConnectionCreated = "connection_created"
	TypeRequestOidcURL    = "request_oidc_url"
	TypeOidcURL           = "oidc_url"
	TypeFinishOidcLogin   = "finish_oidc_login"
	TypeOidcTokens        = "oidc_tokens"
)

const maxLineSize = 1 << 20

// Envelope is one line of the stream.
type Envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// Bridge owns the channels between a stream and login.Service.Run.
type Bridge struct {
	logger zerolog.Logger

	createConnection chan login.CreateConnection
	requestOidcURL   chan login.RequestOidcURL
	finishOidcLogin  chan login.FinishOidcLogin

	connectionCreated chan login.ConnectionCreated
	oidcURL           chan login.OidcURL
	oidcTokens        chan login.OidcTokens

	closeInbound  sync.Once
	closeOutbound sync.Once
}

func NewBridge(bufferSize int, logger zerolog.Logger) *Bridge {
	return &Bridge{
		logger:            logger,
		createConnection:  make(chan login.CreateConnection, bufferSize),
		requestOidcURL:    make(chan login.RequestOidcURL, bufferSize),
		finishOidcLogin:   make(chan login.FinishOidcLogin, bufferSize),
		connectionCreated: make(chan login.ConnectionCreated, bufferSize),
		oidcURL:           make(chan login.OidcURL, bufferSize),
		oidcTokens:        make(chan login.OidcTokens, bufferSize),
	}
}

func (b *Bridge) Inbound() login.Inbound {
	return login.Inbound{
		CreateConnection: b.createConnection,
		RequestOidcURL:   b.requestOidcURL,
		FinishOidcLogin:  b.finishOidcLogin,
	}
}

func (b *Bridge) Outbound() login.Outbound {
	return login.Outbound{
		ConnectionCreated: b.connectionCreated,
		OidcURL:           b.oidcURL,
		OidcTokens:        b.oidcTokens,
	}
}

// Decode reads envelopes from r and dispatches them to the inbound channels
// until r is exhausted or ctx is done. The inbound channels are closed on
// return. Malformed lines, lines over maxLineSize and unknown types are
// logged and skipped.
func (b *Bridge) Decode(ctx context.Context, r io.Reader) error {
	defer b.closeInbound.Do(func() {
		close(b.createConnection)
		close(b.requestOidcURL)
		close(b.finishOidcLogin)
	})

	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, oversized, err := readLine(reader, maxLineSize)
		switch {
		case oversized:
			b.logger.Warn().Int("limit", maxLineSize).Msg("Skipping oversized signal")
		case len(line) > 0:
			if dispatchErr := b.dispatch(ctx, line); dispatchErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.logger.Warn().Err(dispatchErr).Msg("Skipping malformed signal")
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "[Bridge.Decode] read signals")
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed up to its newline and reported as oversized.
func readLine(reader *bufio.Reader, limit int) ([]byte, bool, error) {
	var (
		line      []byte
		oversized bool
	)
	for {
		chunk, err := reader.ReadSlice('\n')
		if !oversized {
			if len(bytes.TrimRight(line, "\r\n"))+len(bytes.TrimRight(chunk, "\r\n")) > limit {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimRight(line, "\r\n"), oversized, err
	}
}

func (b *Bridge) dispatch(ctx context.Context, line []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return errors.Wrapf(err, "decode envelope")
	}

	switch envelope.Type {
	case TypeCreateConnection:
		return deliver(ctx, envelope, b.createConnection)
	case TypeRequestOidcURL:
		return deliver(ctx, envelope, b.requestOidcURL)
	case TypeFinishOidcLogin:
		return deliver(ctx, envelope, b.finishOidcLogin)
	default:
		return errors.Wrapf(errors.ErrUnsupported, "signal type %q", envelope.Type)
	}
}

func deliver[T any](ctx context.Context, envelope Envelope, ch chan<- T) error {
	var msg T
	if err := json.Unmarshal(envelope.Message, &msg); err != nil {
		return errors.Wrapf(err, "decode %s message", envelope.Type)
	}
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseOutbound closes the outbound channels once the service has stopped,
// letting Encode drain and return.
func (b *Bridge) CloseOutbound() {
	b.closeOutbound.Do(func() {
		close(b.connectionCreated)
		close(b.oidcURL)
		close(b.oidcTokens)
	})
}

// Encode writes every outbound response to w as an envelope until all
// outbound channels are closed or ctx is done.
func (b *Bridge) Encode(ctx context.Context, w io.Writer) error {
	encoder := json.NewEncoder(w)
	connectionCreated, oidcURL, oidcTokens := b.connectionCreated, b.oidcURL, b.oidcTokens

	for connectionCreated != nil || oidcURL != nil || oidcTokens != nil {
		var (
			typ string
			msg any
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-connectionCreated:
			if !ok {
				connectionCreated = nil
				continue
			}
			typ, msg = TypeConnectionCreated, resp
		case resp, ok := <-oidcURL:
			if !ok {
				oidcURL = nil
				continue
			}
			typ, msg = TypeOidcURL, resp
		case resp, ok := <-oidcTokens:
			if !ok {
				oidcTokens = nil
				continue
			}
			typ, msg = TypeOidcTokens, resp
		}

		if err := writeEnvelope(encoder, typ, msg); err != nil {
			return err
		}
		b.logger.Debug().Str("type", typ).Msg("Signal sent")
	}
	return nil
}

func writeEnvelope(encoder *json.Encoder, typ string, msg any) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "encode %s message", typ)
	}
	if err := encoder.Encode(Envelope{Type: typ, Message: raw}); err != nil {
		return errors.Wrapf(err, "[Bridge.Encode] write %s", typ)
	}
	return nil
}
