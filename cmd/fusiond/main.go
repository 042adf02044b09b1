// fusiond serves rigid-registration resolution, fusion manifests with cached
// resampled slice buffers, and contour-overlap validation over HTTP.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/oncotools/regfusion/dicecheck"
	"github.com/oncotools/regfusion/fusion"
	"github.com/oncotools/regfusion/fusion/resampler"
	"github.com/oncotools/regfusion/pacsdir"
)

var global *Global

func main() {
	errors := make(chan error, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig,
		os.Interrupt,
		os.Kill,
		syscall.SIGTERM,
		syscall.SIGUSR1,
	)

	configPath := flag.String("config", "", "Path to the YAML service configuration.")
	flag.Parse()

	if *configPath == "" {
		flag.PrintDefaults()
		return
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalln(err)
	}

	logger := log.New(os.Stderr, log.Prefix(), log.Ldate|log.Ltime)

	dir := pacsdir.New(config.StorageRoot)
	resolver := &fusion.Resolver{Dir: dir, Log: logger}
	client := &resampler.ExecClient{Command: config.ResamplerCommand, Log: logger}

	global = &Global{
		Site:   "fusiond",
		Config: config,
		log:    logger,

		dir:          dir,
		resolver:     resolver,
		orchestrator: fusion.NewOrchestrator(&fusion.DirSource{Dir: dir}, client, resolver.ResolveFunc(), logger),
		validator:    &dicecheck.Validator{Dir: dir, Log: logger},
	}

	global.log.Println("Launching", global.Site, "over store", config.StorageRoot)

	go func() {
		global.log.Println("Starting HTTP server on port", config.Port)
		if err := http.ListenAndServe(fmt.Sprintf(`:%d`, config.Port), router(global)); err != nil {
			errors <- err
			global.log.Println(err)
			sig <- syscall.SIGTERM
			return
		}
	}()

Outer:
	for {
		select {
		case sigl := <-sig:

			if sigl == syscall.SIGUSR1 {
				SigStatus()
				continue
			}

			// By default, exit
			global.log.Printf("\nExit: %s\n", sigl.String())

			break Outer

		case err := <-errors:
			if err == nil {
				global.log.Println("Finished")
				break Outer
			}

			// Return a status code indicating failure
			global.log.Println("Exiting due to error", err)
			os.Exit(1)
		}
	}
}

func SigStatus() {
	global.log.Println("There are", runtime.NumGoroutine(), "goroutines running")
}
