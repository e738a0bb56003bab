package plugins

import "github.com/banshee-data/framelens/internal/infer/plugin"

// DefaultRegistry returns a registry with the six built-in generators,
// their six parsers and the MDL scorer, registered in a fixed order.
// Registration order is load-bearing: it fixes tie-breaks among
// hypotheses of equal score.
func DefaultRegistry() *plugin.Registry {
	r := plugin.NewRegistry()

	r.RegisterGenerator(LengthPrefixGenerator{})
	r.RegisterGenerator(DelimiterGenerator{})
	r.RegisterGenerator(FixedHeaderGenerator{})
	r.RegisterGenerator(ExtensibleBitmapGenerator{})
	r.RegisterGenerator(TlvGenerator{})
	r.RegisterGenerator(VarintGenerator{})

	r.RegisterParser(LengthPrefixParser{})
	r.RegisterParser(DelimiterParser{})
	r.RegisterParser(FixedHeaderParser{})
	r.RegisterParser(ExtensibleBitmapParser{})
	r.RegisterParser(TlvParser{})
	r.RegisterParser(VarintParser{})

	r.RegisterScorer(NewMdlScorer())

	return r
}
