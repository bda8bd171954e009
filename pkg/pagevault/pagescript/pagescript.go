// Package pagescript builds the self-contained script injected into a
// rendered snapshot before any page content executes. The script restores
// the saved scroll offset with bounded retries, reports scroll changes to
// the host over a websocket (throttled), injects a synthetic <base>
// element so root-relative links still resolve, and services the
// resource-request bridge used when a direct fetch is not possible.
package pagescript

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

const (
	// ScrollThrottleMillis caps scroll reporting to one message per interval.
	ScrollThrottleMillis = 250

	// ScrollRestoreRetries bounds the animation-frame retry loop used to
	// restore a scroll offset while layout is still settling.
	ScrollRestoreRetries = 30

	// ScrollRestoreTolerance is the acceptable distance in pixels between
	// the achieved and the target scroll offset.
	ScrollRestoreTolerance = 2

	// BaseMarkerAttr tags the synthetic <base> element so repeated
	// injections can find and reuse it instead of adding a second one.
	BaseMarkerAttr = "data-pagevault-base"
)

// Options parameterize one injection of the page script.
type Options struct {
	// ScrollY is the offset to restore. Zero or negative disables restoration.
	ScrollY float64

	// BaseHref, when non-empty, is injected as a synthetic <base> element.
	BaseHref string

	// SocketURL is the websocket endpoint carrying the message envelopes.
	SocketURL string
}

// Build renders the injected script for the given options. The result is a
// complete <script> body; values are JSON-encoded so arbitrary URLs cannot
// break out of the script context.
func Build(opts Options) string {
	scrollY, _ := json.Marshal(opts.ScrollY)
	baseHref, _ := json.Marshal(opts.BaseHref)
	socketURL, _ := json.Marshal(opts.SocketURL)

	return fmt.Sprintf(scriptTemplate,
		string(scrollY), string(baseHref), string(socketURL),
		ScrollThrottleMillis, ScrollRestoreRetries, ScrollRestoreTolerance,
		BaseMarkerAttr)
}

// BaseHref derives the synthetic base for a capture URL: the origin plus
// the directory portion of the path, always ending in a slash. An
// unparseable URL yields the empty string and no <base> is injected.
func BaseHref(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	dir := u.Path
	if idx := strings.LastIndex(dir, "/"); idx >= 0 {
		dir = dir[:idx+1]
	} else {
		dir = "/"
	}
	if dir == "" {
		dir = "/"
	}
	return u.Scheme + "://" + u.Host + dir
}

// AllowNavigation decides whether a navigation attempt away from a rendered
// entry may proceed. Online bookmarks place no restriction. Offline
// snapshots have no live content to navigate to, so only about: targets,
// same-document fragments, and same-origin destinations are allowed; the
// caller surfaces a banner for rejected attempts.
func AllowNavigation(target, entryURL string, mode types.Mode) bool {
	if mode == types.ModeOnline {
		return true
	}
	if target == "" || strings.HasPrefix(target, "#") {
		return true
	}
	if strings.HasPrefix(target, "about:") {
		return true
	}
	tu, err := url.Parse(target)
	if err != nil {
		return false
	}
	if tu.Scheme == "" && tu.Host == "" {
		// Relative reference stays within the rendered document's origin.
		return true
	}
	eu, err := url.Parse(entryURL)
	if err != nil {
		return false
	}
	return tu.Scheme == eu.Scheme && tu.Host == eu.Host
}

// The %s verbs are JSON-encoded Go values; the %d verbs are the tunable
// constants above.
const scriptTemplate = `(function () {
  'use strict';
  var targetY = %s;
  var baseHref = %s;
  var socketURL = %s;
  var THROTTLE_MS = %d;
  var MAX_RETRIES = %d;
  var TOLERANCE = %d;
  var BASE_MARKER = %q;

  var socket = null;
  var queue = [];

  function send(type, payload) {
    var msg = JSON.stringify({ type: type, payload: payload });
    if (socket && socket.readyState === 1) {
      socket.send(msg);
    } else {
      queue.push(msg);
    }
  }

  if (socketURL) {
    try {
      socket = new WebSocket(socketURL);
      socket.onopen = function () {
        while (queue.length) { socket.send(queue.shift()); }
      };
      socket.onmessage = function (ev) {
        var msg;
        try { msg = JSON.parse(ev.data); } catch (e) { return; }
        if (!msg || msg.type !== 'RESOURCE_REQUEST' || !msg.payload) { return; }
        handleResourceRequest(msg.payload);
      };
    } catch (e) {
      socket = null;
    }
  }

  function handleResourceRequest(req) {
    fetch(req.url, { headers: req.headers || {} })
      .then(function (res) {
        if (!res.ok) { throw new Error('status ' + res.status); }
        if (req.responseType === 'data-url') {
          return res.blob().then(function (blob) {
            return new Promise(function (resolve, reject) {
              var reader = new FileReader();
              reader.onload = function () {
                resolve({ id: req.id, success: true, dataUrl: reader.result, mime: blob.type });
              };
              reader.onerror = function () { reject(reader.error); };
              reader.readAsDataURL(blob);
            });
          });
        }
        return res.text().then(function (text) {
          return { id: req.id, success: true, body: text };
        });
      })
      .then(function (resp) { send('RESOURCE_REQUEST', resp); })
      .catch(function (err) {
        send('RESOURCE_REQUEST', { id: req.id, success: false, error: String(err) });
      });
  }

  function injectBase() {
    if (!baseHref || !document.head) { return; }
    var existing = document.head.querySelector('base[' + BASE_MARKER + ']');
    if (existing) {
      existing.setAttribute('href', baseHref);
      return;
    }
    var base = document.createElement('base');
    base.setAttribute('href', baseHref);
    base.setAttribute(BASE_MARKER, '');
    document.head.insertBefore(base, document.head.firstChild);
  }

  function restoreScroll() {
    if (!(targetY > 0)) { return; }
    var attempts = 0;
    function attempt() {
      window.scrollTo(0, targetY);
      attempts++;
      if (Math.abs(window.scrollY - targetY) <= TOLERANCE) { return; }
      if (attempts >= MAX_RETRIES) { return; }
      window.requestAnimationFrame(attempt);
    }
    attempt();
  }

  var lastReport = 0;
  var reportPending = false;
  function reportScroll() {
    var now = Date.now();
    var elapsed = now - lastReport;
    if (elapsed < THROTTLE_MS) {
      if (!reportPending) {
        reportPending = true;
        setTimeout(function () {
          reportPending = false;
          reportScroll();
        }, THROTTLE_MS - elapsed);
      }
      return;
    }
    lastReport = now;
    send('SCROLL', { y: window.scrollY, x: window.scrollX, url: location.href });
  }

  function ready() {
    injectBase();
    restoreScroll();
    window.addEventListener('scroll', reportScroll, { passive: true });
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', ready);
  } else {
    ready();
  }
})();
`
