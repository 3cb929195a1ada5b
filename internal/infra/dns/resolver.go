package dns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

const ednsBufSize = 4096

var (
	ErrNotFound = errors.New("dns: no such record")
	ErrServFail = errors.New("dns: server failure")
	ErrRefused  = errors.New("dns: query refused")
)

// Config contains configuration for the DNS resolver.
type Config struct {
	// Nameservers to query ("8.8.8.8:53"). Empty means /etc/resolv.conf,
	// falling back to public resolvers.
	Nameservers []string

	// Timeout bounds one whole lookup, retries included. Default 5s.
	Timeout time.Duration

	// Retries per nameserver round. Default 1.
	Retries int
}

// Resolver implements scans.Resolver on top of github.com/miekg/dns.
// Every failure is logged at debug level and returned as no records.
type Resolver struct {
	config Config
	client *mdns.Client
	tcp    *mdns.Client
	logger *slog.Logger
}

func New(config Config, logger *slog.Logger) *Resolver {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retries <= 0 {
		config.Retries = 1
	}
	if len(config.Nameservers) == 0 {
		config.Nameservers = systemNameservers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		config: config,
		client: &mdns.Client{Timeout: config.Timeout},
		tcp:    &mdns.Client{Net: "tcp", Timeout: config.Timeout},
		logger: logger,
	}
}

// Config returns the resolver's effective configuration.
func (r *Resolver) Config() Config { return r.config }

func systemNameservers() []string {
	cc, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cc.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	out := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		out = append(out, withPort(s, cc.Port))
	}
	return out
}

func withPort(server, port string) string {
	if port == "" {
		port = "53"
	}
	if strings.HasPrefix(server, "[") || strings.Count(server, ":") == 1 {
		return server
	}
	if strings.Contains(server, ":") {
		return "[" + server + "]:" + port
	}
	return server + ":" + port
}

// query runs one question against the nameservers until one answers.
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), qtype)
	m.RecursionDesired = true
	// TXT apex sets and 4096-bit DKIM keys rarely fit in 512 bytes.
	m.SetEdns0(ednsBufSize, false)

	var lastErr error
	for i := 0; i <= r.config.Retries; i++ {
		for _, server := range r.config.Nameservers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			resp, _, err := r.client.ExchangeContext(ctx, m, server)
			if err == nil && resp.Truncated {
				resp, _, err = r.tcp.ExchangeContext(ctx, m, server)
				if err != nil {
					err = fmt.Errorf("tcp retry after truncation: %w", err)
				}
			}
			if err != nil {
				lastErr = fmt.Errorf("dns query %s: %w", server, err)
				continue
			}
			switch resp.Rcode {
			case mdns.RcodeSuccess:
				return resp, nil
			case mdns.RcodeNameError:
				return nil, ErrNotFound
			case mdns.RcodeServerFailure:
				lastErr = ErrServFail
			case mdns.RcodeRefused:
				lastErr = ErrRefused
			default:
				lastErr = fmt.Errorf("dns: unexpected rcode %s", mdns.RcodeToString[resp.Rcode])
			}
		}
	}
	if lastErr == nil {
		lastErr = ErrServFail
	}
	return nil, lastErr
}

func (r *Resolver) lookup(ctx context.Context, name string, qtype uint16) []mdns.RR {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	resp, err := r.query(ctx, name, qtype)
	if err != nil {
		r.logger.Debug("dns lookup failed",
			slog.String("name", name),
			slog.String("type", mdns.TypeToString[qtype]),
			slog.Any("err", err))
		return nil
	}
	return resp.Answer
}

// ResolveTXT returns TXT strings for name; multi-string records are joined
// per RFC 7208 section 3.3.
func (r *Resolver) ResolveTXT(ctx context.Context, name string) []string {
	var out []string
	for _, rr := range r.lookup(ctx, name, mdns.TypeTXT) {
		if txt, ok := rr.(*mdns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out
}

// ResolveMX returns "<priority> <exchange>" strings ordered by priority.
func (r *Resolver) ResolveMX(ctx context.Context, name string) []string {
	var mxs []*mdns.MX
	for _, rr := range r.lookup(ctx, name, mdns.TypeMX) {
		if mx, ok := rr.(*mdns.MX); ok {
			mxs = append(mxs, mx)
		}
	}
	sort.SliceStable(mxs, func(i, j int) bool {
		if mxs[i].Preference != mxs[j].Preference {
			return mxs[i].Preference < mxs[j].Preference
		}
		return mxs[i].Mx < mxs[j].Mx
	})
	out := make([]string, 0, len(mxs))
	for _, mx := range mxs {
		out = append(out, fmt.Sprintf("%d %s", mx.Preference, strings.TrimSuffix(mx.Mx, ".")))
	}
	return out
}
