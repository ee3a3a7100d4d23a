package common

import "github.com/holiman/uint256"

var TOKEN_NAME = "Poll Token"

var TOKEN_SYMBOL = "POLL"

var TOKEN_DECIMALS uint8 = 18

// 1,000,000 POLL minted to the admin at genesis
var GENESIS_SUPPLY = uint256.MustFromDecimal("1000000000000000000000000")

// 100 POLL debited from the creator for every poll
var POLL_CREATION_FEE = uint256.MustFromDecimal("100000000000000000000")
