package main

import (
	"cpsys/station"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	chargePoint, err := station.NewChargePoint()
	if err != nil {
		log.Println("charge point initialization failed:", err)
		return
	}
	chargePoint.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Println("shutting down")
	chargePoint.Stop()
}
