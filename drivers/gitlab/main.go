package main

import (
	"github.com/datazip-inc/airlake"
	driver "github.com/datazip-inc/airlake/drivers/gitlab/internal"
)

func main() {
	airlake.RegisterSource(&driver.GitLab{})
}
