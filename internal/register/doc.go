// Package register is the HTTP side of subscription: it stores the
// subscription a browser posts and serves the page that produces it.
package register
