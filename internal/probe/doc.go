// Package probe answers "is this source live right now" for each supported
// platform and resolves the URL a capture backend should read from.
//
// Probers are registered per platform. A prober may also implement
// BatchProber for checking many sources at once, and io.Closer to release
// connections after every capture attempt.
package probe
