// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitwire

import (
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Action classifies an exchange by what it does to the repository.
type Action string

const (
	// ActionPull is a read: clone, fetch, or ls-remote via
	// upload-pack.
	ActionPull Action = "pull"
	// ActionPush is a write via receive-pack.
	ActionPush Action = "push"
)

// Service names accepted on the wire.
const (
	UploadPack  = "git-upload-pack"
	ReceivePack = "git-receive-pack"
)

// Exchange describes one parsed smart-HTTP request: which subprocess
// to run, with which extra arguments, and what the response declares
// itself as. It is transient, owned by the handling request.
type Exchange struct {
	// Action is pull or push.
	Action Action

	// Service is the wire service name (git-upload-pack or
	// git-receive-pack).
	Service string

	// Args are the git subcommand and flags, without the binary
	// name and without the repository directory (the bridge appends
	// that last, matching `git upload-pack <dir>` conventions).
	Args []string

	// ContentType is the response content type for this shape.
	ContentType string

	// AdvertiseRefs is true for the GET info/refs shape, where the
	// response opens with a service announcement header and the
	// subprocess only advertises.
	AdvertiseRefs bool
}

// ParseRequest recognizes the two smart-HTTP request shapes:
//
//	GET  /{name}.git/info/refs?service=git-upload-pack|git-receive-pack
//	POST /{name}.git/git-upload-pack
//	POST /{name}.git/git-receive-pack
//
// The repository segment itself is resolved by the locator before the
// exchange starts; ParseRequest only classifies the tail of the URL.
// Unrecognized shapes return an error and no subprocess is spawned.
func ParseRequest(method string, requestURL *url.URL) (*Exchange, error) {
	segments := splitPath(requestURL.Path)
	if len(segments) < 2 {
		return nil, fmt.Errorf("gitwire: not a smart-http path %q", requestURL.Path)
	}
	tail := segments[len(segments)-1]

	switch {
	case method == "GET" && tail == "refs" && segments[len(segments)-2] == "info":
		serviceName := requestURL.Query().Get("service")
		action, err := actionForService(serviceName)
		if err != nil {
			return nil, err
		}
		return &Exchange{
			Action:        action,
			Service:       serviceName,
			Args:          []string{subcommand(serviceName), "--stateless-rpc", "--advertise-refs"},
			ContentType:   fmt.Sprintf("application/x-%s-advertisement", serviceName),
			AdvertiseRefs: true,
		}, nil

	case method == "POST" && (tail == UploadPack || tail == ReceivePack):
		action, err := actionForService(tail)
		if err != nil {
			return nil, err
		}
		return &Exchange{
			Action:      action,
			Service:     tail,
			Args:        []string{subcommand(tail), "--stateless-rpc"},
			ContentType: fmt.Sprintf("application/x-%s-result", tail),
		}, nil
	}

	return nil, fmt.Errorf("gitwire: unrecognized request %s %s", method, requestURL.Path)
}

// WriteAdvertisementHeader writes the service announcement that must
// precede subprocess output on an info/refs response: a pkt-line
// naming the service, then a flush-pkt.
func WriteAdvertisementHeader(w io.Writer, serviceName string) error {
	if err := WritePacket(w, []byte("# service="+serviceName+"\n")); err != nil {
		return err
	}
	return WriteFlush(w)
}

// RepositorySegment extracts the repository name from a smart-HTTP
// URL path: the first non-empty segment, with a trailing ".git"
// stripped. Returns an error when the path has no usable segment.
func RepositorySegment(path string) (string, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return "", fmt.Errorf("gitwire: no repository in path %q", path)
	}
	name := strings.TrimSuffix(segments[0], ".git")
	if name == "" {
		return "", fmt.Errorf("gitwire: empty repository name in path %q", path)
	}
	return name, nil
}

func actionForService(serviceName string) (Action, error) {
	switch serviceName {
	case UploadPack:
		return ActionPull, nil
	case ReceivePack:
		return ActionPush, nil
	case "":
		return "", fmt.Errorf("gitwire: missing service parameter")
	default:
		return "", fmt.Errorf("gitwire: unsupported service %q", serviceName)
	}
}

// subcommand maps a wire service name to the git subcommand
// ("git-upload-pack" → "upload-pack").
func subcommand(serviceName string) string {
	return strings.TrimPrefix(serviceName, "git-")
}

func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
