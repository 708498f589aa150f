package main

import (
	"github.com/datazip-inc/airlake"
	driver "github.com/datazip-inc/airlake/drivers/pagerduty/internal"
)

func main() {
	airlake.RegisterSource(&driver.PagerDuty{})
}
