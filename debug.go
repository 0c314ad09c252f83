package sendfile

// dump answers with a plain text listing of the raw query, every gateway
// parameter and every field that decodes. Only reachable with SetDebug.
func (r *Router) dump(c *Context, qstr string) {
	e := c.emitter

	e.Header("Content-type", "text/plain")
	e.Newline()
	e.Line(`encoded="` + qstr + `"`)
	e.Newline()

	c.Params.Each(func(name, value string) {
		e.Line(name + "=" + value)
	})

	t := NewTokenizer([]byte(qstr))
	for token, ok := t.Next(); ok; token, ok = t.Next() {
		if len(token) == 0 {
			continue
		}
		f, err := DecodeField(token)
		if err != nil {
			continue
		}
		e.Line("key='" + string(f.Key) + "' val='" + string(f.Value) + "'")
	}
}
