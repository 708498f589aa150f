package main

import (
	"github.com/datazip-inc/airlake"
)

func main() {
	airlake.RegisterDestination()
}
