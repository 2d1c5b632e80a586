package pattern

import "github.com/scamwatch-ai/scamwatch/internal/analysis"

// Built-in scam pattern library. These are common archetypes described in
// plain English; deployments can use them directly or as templates for
// custom patterns. Nothing loads them implicitly: callers that want the
// common set call Common() and hand the result to a registry.

var advanceFee = ScamPattern{
	Name: "advance_fee",
	Description: "A scam where the victim is promised a large sum of money, prize, or valuable " +
		"item, but must first pay a fee, tax, or processing charge to receive it. " +
		"The promised reward never materializes after payment.",
	Indicators: []string{
		"Promise of large unexpected windfall (lottery, inheritance, grant)",
		"Request for upfront payment to 'release' or 'process' funds",
		"Urgency or time pressure to pay quickly",
		"Request for payment via untraceable methods (gift cards, crypto, wire)",
		"Claim of official-sounding organization or government agency",
		"Grammar or spelling errors in supposedly official communication",
	},
	Severity: analysis.RiskHigh,
	Examples: []string{
		"You've won $1,000,000! Pay $500 processing fee to claim.",
		"Your late uncle left you an inheritance, wire $2000 for legal fees.",
		"Government grant approved! Send $100 via gift card to receive $10,000.",
	},
}

var cryptoPumpDump = ScamPattern{
	Name: "crypto_pump_dump",
	Description: "A scheme promoting a cryptocurrency or token with exaggerated claims to " +
		"artificially inflate the price, allowing early holders to sell at a profit " +
		"while later investors lose money when the price crashes.",
	Indicators: []string{
		"Claims of guaranteed or extremely high returns (100x, 1000x)",
		"Urgency to buy before price increases",
		"Celebrity endorsement claims (often fake)",
		"New or unknown token with limited information",
		"Pressure to share or recruit others",
		"Claims of insider information or 'getting in early'",
		"Dismissal of risks or skepticism",
	},
	Severity: analysis.RiskHigh,
	Examples: []string{
		"This coin is going to 100x next week, buy now before it's too late!",
		"Insider tip: [TOKEN] launching tomorrow, guaranteed moonshot.",
		"Elon just tweeted about this! It's going to explode!",
	},
}

var fakeInvestment = ScamPattern{
	Name: "fake_investment",
	Description: "Fraudulent investment opportunity promising unrealistic returns with " +
		"little or no risk. Often structured as Ponzi schemes where early " +
		"investors are paid with funds from later investors.",
	Indicators: []string{
		"Guaranteed high returns with no risk",
		"Consistent returns regardless of market conditions",
		"Pressure to invest quickly or increase investment",
		"Difficulty withdrawing funds",
		"Unregistered or unlicensed investment",
		"Complex or secretive investment strategy",
		"Referral bonuses for recruiting others",
	},
	Severity: analysis.RiskCritical,
	Examples: []string{
		"Earn 10% weekly returns guaranteed, no risk!",
		"Our AI trading bot has never had a losing month.",
		"Invest $1000 today, withdraw $5000 next month.",
	},
}

var fakeBuyer = ScamPattern{
	Name: "fake_buyer",
	Description: "Scam targeting sellers where a fake buyer pretends interest in purchasing " +
		"an item but aims to defraud the seller through overpayment schemes, " +
		"fake payment confirmations, or requests to ship before payment clears.",
	Indicators: []string{
		"Overpayment with request to refund the difference",
		"Urgency to ship immediately before payment verification",
		"Unusual payment methods or requests",
		"Unwillingness to meet locally for local sales",
		"Generic messages that don't reference the specific item",
		"Request to continue conversation off-platform",
		"Shipping to different address than buyer location",
	},
	Severity: analysis.RiskHigh,
	Examples: []string{
		"I'll send you $500 extra for shipping, wire back the difference.",
		"Payment sent! Ship now, it's urgent for my son's birthday.",
		"Can we talk on WhatsApp? I have a special payment method.",
	},
}

var fakeSeller = ScamPattern{
	Name: "fake_seller",
	Description: "Scam where a fraudulent seller offers items (often at attractive prices) " +
		"but never delivers the goods after receiving payment, or sends " +
		"counterfeit/inferior products.",
	Indicators: []string{
		"Price significantly below market value",
		"Request for payment outside platform protection",
		"New account with no history or reviews",
		"Stock photos or images stolen from elsewhere",
		"Vague or copy-pasted product descriptions",
		"Pressure to buy quickly due to 'limited stock'",
		"Only accepts non-reversible payment methods",
	},
	Severity: analysis.RiskHigh,
	Examples: []string{
		"Brand new iPhone for $200, Venmo only, selling fast!",
		"PS5 below retail - must pay via Zelle before meeting.",
		"Designer bags 80% off, DM for payment details.",
	},
}

var romanceScam = ScamPattern{
	Name: "romance_scam",
	Description: "Scam where fraudster creates fake romantic interest to build emotional " +
		"connection, then exploits that trust to request money for fabricated " +
		"emergencies, travel costs, or investment opportunities.",
	Indicators: []string{
		"Quick progression to declarations of love",
		"Unable to video chat or meet in person",
		"Claims to be overseas (military, oil rig, business)",
		"Eventual request for money for emergencies",
		"Sob stories about sick relatives or lost wallet",
		"Request to receive or forward money/packages",
		"Profile seems too perfect or photos look professional",
	},
	Severity: analysis.RiskHigh,
	Examples: []string{
		"I'm stuck overseas and lost my wallet, can you wire me $2000?",
		"I want to visit you but need help with the plane ticket.",
		"My mother is sick and I need money for her surgery.",
	},
}

var fakeJob = ScamPattern{
	Name: "fake_job",
	Description: "Fraudulent job offer designed to steal money or personal information. " +
		"May require payment for training/equipment, or collect sensitive data " +
		"under guise of employment application.",
	Indicators: []string{
		"Job requires upfront payment for training or equipment",
		"Salary too good for the work described",
		"Vague job description or company information",
		"Interview conducted only via text/chat",
		"Requests for sensitive personal information early",
		"Work from home with minimal requirements",
		"Payment in advance of work completion",
	},
	Severity: analysis.RiskHigh,
	Examples: []string{
		"Make $5000/week working from home, just pay $200 for training.",
		"Hired! Send SSN and bank details to set up direct deposit.",
		"Easy money reshipping packages from home.",
	},
}

var moneyMule = ScamPattern{
	Name: "money_mule",
	Description: "Recruitment scheme to use someone's bank account to launder money. " +
		"Victim receives funds (often stolen) and forwards them elsewhere, " +
		"keeping a percentage as 'commission'.",
	Indicators: []string{
		"Job involves receiving and forwarding money",
		"No real product or service being provided",
		"Commission based on money transferred",
		"Urgency to move funds quickly",
		"Communication primarily via messaging apps",
		"Company has no verifiable presence",
		"Task seems too easy for the pay offered",
	},
	Severity: analysis.RiskCritical,
	Examples: []string{
		"Receive payments and forward 90%, keep 10% as your fee.",
		"Work as our payment processor, $500/day for easy transfers.",
		"Help our international company process customer payments.",
	},
}

var techSupport = ScamPattern{
	Name: "tech_support",
	Description: "Scam where fraudster poses as technical support from a legitimate " +
		"company, claiming the victim's device is infected or compromised, " +
		"then charges for unnecessary services or gains remote access.",
	Indicators: []string{
		"Unsolicited contact about computer problems",
		"Urgent warnings about viruses or hackers",
		"Request for remote access to computer",
		"Payment requested for fixing non-existent problems",
		"Claims to be from Microsoft, Apple, or ISP",
		"Pressure tactics and scare language",
		"Request for payment via gift cards",
	},
	Severity: analysis.RiskHigh,
	Examples: []string{
		"Microsoft detected a virus on your computer, call now!",
		"Your IP has been compromised, pay $300 to fix.",
		"Allow remote access so we can remove the hackers.",
	},
}

var phishing = ScamPattern{
	Name: "phishing",
	Description: "Attempt to steal sensitive information by impersonating a legitimate " +
		"entity. Often uses fake websites, emails, or messages that mimic " +
		"trusted organizations to collect login credentials or financial data.",
	Indicators: []string{
		"Urgency to verify account or update information",
		"Link to website with slightly wrong URL",
		"Request for password, PIN, or security codes",
		"Threats of account suspension or closure",
		"Generic greeting instead of your name",
		"Sender email doesn't match company domain",
		"Request to confirm information you never provided",
	},
	Severity: analysis.RiskHigh,
	Examples: []string{
		"Your account will be suspended! Click here to verify.",
		"Unusual login detected, confirm your password now.",
		"Update your payment method or lose access.",
	},
}

// Common returns every built-in pattern.
func Common() []ScamPattern {
	return []ScamPattern{
		advanceFee,
		cryptoPumpDump,
		fakeInvestment,
		fakeBuyer,
		fakeSeller,
		romanceScam,
		fakeJob,
		moneyMule,
		techSupport,
		phishing,
	}
}

// Financial returns patterns related to financial/investment scams.
func Financial() []ScamPattern {
	return []ScamPattern{advanceFee, cryptoPumpDump, fakeInvestment}
}

// Marketplace returns patterns related to e-commerce/marketplace scams.
func Marketplace() []ScamPattern {
	return []ScamPattern{fakeBuyer, fakeSeller}
}

// Employment returns patterns related to employment/job scams.
func Employment() []ScamPattern {
	return []ScamPattern{fakeJob, moneyMule}
}

// Tech returns patterns related to tech support and phishing scams.
func Tech() []ScamPattern {
	return []ScamPattern{techSupport, phishing}
}
