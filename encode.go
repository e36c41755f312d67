package expose

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// BodyReader decodes a request body. charset is the charset parameter of
// the request content type, or "" when absent. Mapping results are merged
// into the gathered input.
type BodyReader func(body io.Reader, charset string) (any, error)

// defaultBodyReaders is the content-type dispatch table every registry
// starts with.
func defaultBodyReaders() map[string]BodyReader {
	return map[string]BodyReader{
		"application/json":                  JSONBody,
		"text/plain":                        TextBody,
		"application/x-www-form-urlencoded": FormBody,
		"application/yaml":                  YAMLBody,
		"application/x-yaml":                YAMLBody,
		"application/toml":                  TOMLBody,
		"application/msgpack":               MsgPackBody,
		"application/x-msgpack":             MsgPackBody,
	}
}

// bodyReaderFor returns the reader registered for contentType and the
// charset parameter, ignoring any other parameters.
func bodyReaderFor(readers map[string]BodyReader, contentType string) (BodyReader, string, bool) {
	if contentType == "" {
		return nil, "", false
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, "", false
	}
	reader, ok := readers[mediaType]
	return reader, params["charset"], ok
}

// JSONBody decodes a JSON document. An empty body decodes to nil.
func JSONBody(body io.Reader, charset string) (any, error) {
	text, err := readText(body, charset)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.NewDecoder(strings.NewReader(text)).Decode(&out)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return out, nil
}

// JSONUnderscoreBody decodes JSON and converts camelCase keys to snake_case.
func JSONUnderscoreBody(body io.Reader, charset string) (any, error) {
	out, err := JSONBody(body, charset)
	if err != nil {
		return nil, err
	}
	return rekey(out, snakeCase), nil
}

// TextBody returns the body as a string.
func TextBody(body io.Reader, charset string) (any, error) {
	return readText(body, charset)
}

// FormBody decodes an urlencoded form. Repeated keys become []string.
func FormBody(body io.Reader, charset string) (any, error) {
	text, err := readText(body, charset)
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(text)
	if err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	return flatten(values), nil
}

// YAMLBody decodes a YAML document.
func YAMLBody(body io.Reader, _ string) (any, error) {
	var out any
	err := yaml.NewDecoder(body).Decode(&out)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid YAML body: %w", err)
	}
	return out, nil
}

// TOMLBody decodes a TOML document into a mapping.
func TOMLBody(body io.Reader, _ string) (any, error) {
	out := map[string]any{}
	if _, err := toml.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid TOML body: %w", err)
	}
	return out, nil
}

// MsgPackBody decodes a MessagePack document.
func MsgPackBody(body io.Reader, _ string) (any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid MessagePack body: %w", err)
	}
	return out, nil
}

// readText reads the body and decodes it from charset. Only UTF-8 (and its
// ASCII subset) and ISO-8859-1 are understood.
func readText(body io.Reader, charset string) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return string(raw), nil
	case "iso-8859-1", "latin-1", "latin1":
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}
		return string(runes), nil
	default:
		return "", fmt.Errorf("unsupported charset %q", charset)
	}
}

// flatten turns single-valued query or form entries into strings.
func flatten(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		out[k] = vs
	}
	return out
}
