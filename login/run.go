package login

import (
	"context"
	"sync"
)

// Inbound carries the requests of each flow. A nil channel disables its flow.
type Inbound struct {
	CreateConnection <-chan CreateConnection
	RequestOidcURL   <-chan RequestOidcURL
	FinishOidcLogin  <-chan FinishOidcLogin
}

// Outbound receives the responses of each flow. Every flow with a non-nil
// inbound channel needs its outbound channel.
type Outbound struct {
	ConnectionCreated chan<- ConnectionCreated
	OidcURL           chan<- OidcURL
	OidcTokens        chan<- OidcTokens
}

// Run serves the three flows concurrently, one goroutine each, until ctx is
// done or every inbound channel is closed. Each request gets exactly one
// response on the matching outbound channel.
func (s *Service) Run(ctx context.Context, in Inbound, out Outbound) {
	var wg sync.WaitGroup
	if in.CreateConnection != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(ctx, in.CreateConnection, out.ConnectionCreated, s.CreateConnection)
		}()
	}
	if in.RequestOidcURL != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(ctx, in.RequestOidcURL, out.OidcURL, s.RequestOidcURL)
		}()
	}
	if in.FinishOidcLogin != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(ctx, in.FinishOidcLogin, out.OidcTokens, s.FinishOidcLogin)
		}()
	}
	wg.Wait()
	s.logger.Debug().Msg("Login flows stopped")
}

func serve[Req, Resp any](ctx context.Context, in <-chan Req, out chan<- Resp, handle func(context.Context, Req) Resp) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-in:
			if !ok {
				return
			}
			resp := handle(ctx, req)
			select {
			case out <- resp:
			case <-ctx.Done():
				return
			}
		}
	}
}
