package main

import (
	"github.com/datazip-inc/airlake"
	driver "github.com/datazip-inc/airlake/drivers/asana/internal"
)

func main() {
	airlake.RegisterSource(&driver.Asana{})
}
