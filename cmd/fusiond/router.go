package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/interpose/middleware"
	"github.com/justinas/alice"
)

func router(config *Global) http.Handler {
	router := mux.NewRouter()
	POST := router.Methods("POST").Subrouter()
	GET := router.Methods("GET", "HEAD").Subrouter()

	h := handler{Global: config, router: router}

	GET.HandleFunc("/goroutines", h.Goroutines)
	GET.HandleFunc("/resolve/{primary}/{secondary}", h.Resolve).Name("resolve")
	GET.HandleFunc("/fusion/manifest/{primary}", h.FusionManifest).Name("manifest")
	GET.HandleFunc("/fusion/slice/{primary}/{secondary}/{sop}", h.FusionSlice).Name("slice")
	GET.HandleFunc("/dice/{primary}/{secondary}", h.Dice).Name("dice")
	GET.HandleFunc("/dice/scan/{primary}/{secondary}", h.DiceScan).Name("dicescan")

	//
	// POST
	//
	POST.Handle("/", http.NotFoundHandler())
	POST.HandleFunc("/fusion/clear/{primary}", h.FusionClear)

	standard := alice.New(
		// Log all requests to STDOUT
		middleware.GorillaLog(),
	)

	return standard.Then(router)
}
