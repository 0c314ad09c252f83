package sendfile

// Gateway parameter names read by the router.
const (
	ParamScriptName  = "SCRIPT_NAME"
	ParamQueryString = "QUERY_STRING"
	ParamRequestURI  = "REQUEST_URI"
)

// Params is the read-only view of the gateway parameters of one request.
type Params interface {
	Lookup(name string) (string, bool)
	// Each visits every parameter in arrival order.
	Each(fn func(name, value string))
}

// MapParams adapts a plain map. Each visits keys in no particular order.
type MapParams map[string]string

func (m MapParams) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapParams) Each(fn func(name, value string)) {
	for k, v := range m {
		fn(k, v)
	}
}
