// Package catalog holds the pool of pre-rendered captcha challenges used to
// bind reset tokens.
//
// A [Catalog] is built once from a list of [Entry] values or a JSON manifest
// and is read-only afterwards. Each challenge has a stable integer id, a
// server-side expected answer, and an image path that a [Resolver] turns into
// the display reference handed to notifiers.
//
// # What this package must NOT do
//
//   - Read, render, or generate image bytes.
//   - Expose expected answers to anything but server-side matching.
package catalog
