package annot

import _ "modernc.org/sqlite"

const driverName = "sqlite"
