package afs

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedResponse is returned when a 200 response carries no usable SOAP body.
var ErrMalformedResponse = errors.New("afs: malformed SOAP response")

// HTTPError is returned for any non-200 reply from the ECR service.
type HTTPError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("afs %s: HTTP Error: %d", e.Operation, e.StatusCode)
}

// Result is the flattened content of an ECR result element.
type Result struct {
	WebResponseStatus string
	PosRespText       string
	PosRespCode       string
	AuthCode          string
	RRN               string
	CardNumber        string

	// Fields holds every leaf element of the result by local name.
	Fields map[string]string
}

// Approved reports whether the terminal approved the transaction.
func (r *Result) Approved() bool {
	return strings.Contains(r.PosRespText, "APPROVAL") && r.Succeeded()
}

// Succeeded reports whether the ECR web service accepted the request.
func (r *Result) Succeeded() bool {
	return strings.Contains(r.WebResponseStatus, "Success")
}

// Field returns the first non-empty field among names.
func (r *Result) Field(names ...string) string {
	for _, name := range names {
		if v := r.Fields[name]; v != "" {
			return v
		}
	}
	return ""
}

type node struct {
	name     string
	text     string
	children []*node
}

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *node
	var stack []*node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedResponse)
	}
	return root, nil
}

// find walks the tree in document order.
func (n *node) find(match func(*node) bool) *node {
	if match(n) {
		return n
	}
	for _, c := range n.children {
		if found := c.find(match); found != nil {
			return found
		}
	}
	return nil
}

func (n *node) flatten(fields map[string]string) {
	if len(n.children) == 0 {
		if _, seen := fields[n.name]; !seen {
			fields[n.name] = strings.TrimSpace(n.text)
		}
		return
	}
	for _, c := range n.children {
		c.flatten(fields)
	}
}

// parseResult locates resultTag anywhere in the document. Without it the
// first child of Body is used, or that child's own *Result element.
func parseResult(data []byte, resultTag string) (*Result, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, err
	}

	element := root.find(func(n *node) bool { return n.name == resultTag })
	if element == nil {
		body := root.find(func(n *node) bool { return strings.HasSuffix(n.name, "Body") })
		if body == nil || len(body.children) == 0 {
			return nil, fmt.Errorf("%w: could not find %q or a response body", ErrMalformedResponse, resultTag)
		}
		element = body.children[0]
		if len(element.children) > 0 && strings.Contains(element.children[0].name, "Result") {
			element = element.children[0]
		}
	}

	fields := make(map[string]string)
	for _, c := range element.children {
		c.flatten(fields)
	}

	r := &Result{Fields: fields}
	r.WebResponseStatus = r.Field("WebResponseStatus")
	r.PosRespText = r.Field("PosRespText")
	r.PosRespCode = r.Field("PosRespCode")
	r.AuthCode = r.Field("AuthCode", "PosAuthCode")
	r.RRN = r.Field("RRN", "Rrn", "PosRrn")
	r.CardNumber = r.Field("CardNumber", "MaskedPan", "Pan")
	return r, nil
}
