package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"quadservo/protocol"
)

// Dictionary is the parsed data dictionary a controller reports through
// identify
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`

	commands  map[string]*Format
	responses map[uint16]*Format
}

// Param is one name=%x field of a message format
type Param struct {
	Name string
	Type string // c, u, i or s
}

// Format describes how one message is encoded
type Format struct {
	ID     uint16
	Name   string
	Params []Param
}

// ParseDictionary decodes the dictionary JSON and indexes its formats
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dictionary: %w", err)
	}
	d.commands = make(map[string]*Format, len(d.Commands))
	for sig, id := range d.Commands {
		f, err := ParseFormat(sig)
		if err != nil {
			return nil, err
		}
		f.ID = uint16(id)
		d.commands[f.Name] = f
	}
	d.responses = make(map[uint16]*Format, len(d.Responses))
	for sig, id := range d.Responses {
		f, err := ParseFormat(sig)
		if err != nil {
			return nil, err
		}
		f.ID = uint16(id)
		d.responses[f.ID] = f
	}
	return d, nil
}

// ParseFormat splits a signature such as "set_target axis=%c value=%i"
func ParseFormat(sig string) (*Format, error) {
	fields := strings.Fields(sig)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty message format")
	}
	f := &Format{Name: fields[0]}
	for _, field := range fields[1:] {
		name, conv, ok := strings.Cut(field, "=%")
		if !ok || conv == "" {
			return nil, fmt.Errorf("bad parameter %q in %q", field, sig)
		}
		typ := conv[len(conv)-1:]
		switch typ {
		case "c", "u", "i", "s":
		default:
			return nil, fmt.Errorf("unknown parameter type %%%s in %q", conv, sig)
		}
		f.Params = append(f.Params, Param{Name: name, Type: typ})
	}
	return f, nil
}

// Command returns the format of a command by name
func (d *Dictionary) Command(name string) (*Format, bool) {
	f, ok := d.commands[name]
	return f, ok
}

// Response returns the format of a response by id
func (d *Dictionary) Response(id uint16) (*Format, bool) {
	f, ok := d.responses[id]
	return f, ok
}

// ResponseID returns the id of a response by name
func (d *Dictionary) ResponseID(name string) (uint16, bool) {
	for id, f := range d.responses {
		if f.Name == name {
			return id, true
		}
	}
	return 0, false
}

// Constant returns an integer from the config section
func (d *Dictionary) Constant(name string) (int64, bool) {
	v, ok := d.Config[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

// Fields is a decoded message. Numbers are int64; strings are []byte.
type Fields map[string]interface{}

// Int returns a numeric field, or 0
func (f Fields) Int(name string) int64 {
	v, _ := f[name].(int64)
	return v
}

// Decode reads the parameters of a message from r
func (f *Format) Decode(r *protocol.Reader) (Fields, error) {
	out := make(Fields, len(f.Params))
	for _, p := range f.Params {
		switch p.Type {
		case "i":
			out[p.Name] = int64(r.Int())
		case "s":
			out[p.Name] = r.Bytes()
		default:
			out[p.Name] = int64(r.Uint())
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return out, nil
}

// Encode appends the command id and args to dst. args must match the
// numeric parameters in order.
func (f *Format) Encode(dst []byte, args ...int32) ([]byte, error) {
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", f.Name, len(f.Params), len(args))
	}
	dst = protocol.AppendVLQUint(dst, uint32(f.ID))
	for i, p := range f.Params {
		if p.Type == "s" {
			return nil, fmt.Errorf("%s: string parameter %s not supported", f.Name, p.Name)
		}
		dst = protocol.AppendVLQ(dst, args[i])
	}
	return dst, nil
}
