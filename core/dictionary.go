package core

import "sort"

// RegisterConstant publishes a value in the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalRegistry.RegisterConstant(name, value)
}

// RegisterConstant publishes a value in the dictionary's config section
func (r *CommandRegistry) RegisterConstant(name string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constants[name] = value
	r.dict = nil
}

// SetVersion sets the firmware version reported in the dictionary
func (r *CommandRegistry) SetVersion(version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version = version
	r.dict = nil
}

// Dictionary returns the JSON data dictionary:
//
//	{"version":"...","config":{"AXES":"3",...},
//	 "commands":{"set_target axis=%c value=%i":4,...},
//	 "responses":{"axis_status ...":9,...}}
//
// It is built by hand so the firmware does not pull in encoding/json.
func (r *CommandRegistry) Dictionary() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dict == nil {
		r.dict = r.buildDictionary()
	}
	return r.dict
}

// DictionaryChunk returns up to count bytes of the dictionary from offset
func (r *CommandRegistry) DictionaryChunk(offset uint32, count uint8) []byte {
	dict := r.Dictionary()
	if offset >= uint32(len(dict)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(dict)) {
		end = uint32(len(dict))
	}
	return dict[offset:end]
}

func (r *CommandRegistry) buildDictionary() []byte {
	out := make([]byte, 0, 1024)
	out = append(out, `{"version":`...)
	out = appendJSONString(out, r.version)

	out = append(out, `,"config":{`...)
	names := make([]string, 0, len(r.constants))
	for name := range r.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendJSONString(out, name)
		out = append(out, ':')
		out = appendJSONString(out, constantString(r.constants[name]))
	}

	out = append(out, `},"commands":{`...)
	out = r.appendEntries(out, false)
	out = append(out, `},"responses":{`...)
	out = r.appendEntries(out, true)
	return append(out, "}}"...)
}

func (r *CommandRegistry) appendEntries(out []byte, responses bool) []byte {
	first := true
	for _, cmd := range r.commands {
		if cmd.IsResponse() != responses {
			continue
		}
		if !first {
			out = append(out, ',')
		}
		first = false
		out = appendJSONString(out, cmd.Signature())
		out = append(out, ':')
		out = append(out, itoa(int(cmd.ID))...)
	}
	return out
}

// appendJSONString quotes s. Command formats only need quote and
// backslash escaping.
func appendJSONString(out []byte, s string) []byte {
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return append(out, '"')
}
