// Package logging provides structured logging for pdfchat on top of Zap.
//
// Logs go to stderr so answers printed on stdout can be piped. Each entry
// carries correlation fields taken from the context:
//
//	ctx = logging.WithSessionID(ctx, session.ID())
//	ctx = logging.WithAskID(ctx, askID)
//	logger.Info(ctx, "answered", zap.Duration("duration", d))
//
// yields trace_id/span_id (when a span is active), session.id and ask.id.
//
// Secrets are protected in two layers: the config.Secret type never prints
// its value, and the encoder blanks sensitive keys (api_key, token, ...)
// and masks bearer tokens and API keys inside messages and values.
//
// Sampling is per level and off by default; Error and above are never
// sampled. With OTEL output enabled, entries are also forwarded through the
// otelzap bridge.
//
// Tests log into a Recorder and inspect its entries.
package logging
