// Command pql runs PQL queries against an EMS team from the command line.
//
//	pql query '"ACTIVITIES"."CASE_ID", COUNT("ACTIVITIES"."ACTIVITY_EN") AS N' \
//	    --group-by '"ACTIVITIES"."CASE_ID"' --order-by N:desc --limit 10
//
// Connections are read from connections.toml in EMS_HOME; see pql configure.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}
