package server

import (
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// minifiedAppJS returns the embedded client script, minified. A failed transform serves the
// source as is.
func minifiedAppJS() []byte {
	src, err := webFS.ReadFile("web/static/app.js")
	if err != nil {
		log.Error().Err(err).Msg("Missing embedded app.js")
		return nil
	}

	res := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2017,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
	})
	if len(res.Errors) > 0 {
		log.Warn().Str("error", res.Errors[0].Text).Int("errors", len(res.Errors)).Msg("Minifying app.js failed, serving source")
		return src
	}
	return res.Code
}
