/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// serveQuestionQR renders a PNG QR code pointing at a question's reference
// image, so the audience can open it on their own phones.
func serveQuestionQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, err := strconv.Atoi(ps.ByName("id"))
		if err != nil {
			http.Error(w, "invalid question id", http.StatusBadRequest)
			return
		}

		q, ok := cfg.bank.ByID(id)
		if !ok || q.Image == "" || q.ImageReveal == RevealNone {
			http.NotFound(w, r)
			return
		}

		png, err := qrcode.Encode(q.Image, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}
