// Package rembg calls the Gemini generateContent API to remove the background
// from an image.
//
// # Request
//
// One request per image: a fixed text instruction plus the image as
// inline_data, with IMAGE among the response modalities. The API key travels
// in the x-goog-api-key header.
//
// # Response
//
// The first inline image part across all candidates is taken. Its bytes are
// decoded and re-encoded as an RGBA PNG, so callers always get image/png.
//
// # Errors
//
// Every failure wraps common.ErrorUpstream: transport errors, non-2xx
// statuses, blocked prompts and responses that do not match the expected
// schema. There are no retries and no default timeout.
package rembg
