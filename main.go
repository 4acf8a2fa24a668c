package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lattice-fed/lattice/activitypub"
	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/util"
	"github.com/lattice-fed/lattice/web"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	database, err := db.Open(util.ResolveFilePath("database.db"))
	if err != nil {
		log.Fatalln(err)
	}
	defer database.Close()

	hub := web.NewHub()
	go hub.Run()

	federator := activitypub.New(database, conf, hub)

	// Start the outbound delivery pool if federation is enabled
	if conf.Conf.Federate {
		federator.Deliverer.Start(conf.Conf.DeliveryWorkers)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := web.Router(conf, database, federator, hub); err != nil {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping federation server")
	if conf.Conf.Federate {
		federator.Deliverer.Stop()
	}
}
