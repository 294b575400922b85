package sites

// Builtin is the default paywall list. It is never persisted; user changes are
// stored as overrides against it.
var Builtin = []string{
	"nytimes.com",
	"wsj.com",
	"washingtonpost.com",
	"ft.com",
	"economist.com",
	"bloomberg.com",
	"theatlantic.com",
	"newyorker.com",
	"wired.com",
	"businessinsider.com",
	"latimes.com",
	"bostonglobe.com",
	"chicagotribune.com",
	"seattletimes.com",
	"sfchronicle.com",
	"theathletic.com",
	"barrons.com",
	"marketwatch.com",
	"hbr.org",
	"foreignpolicy.com",
	"foreignaffairs.com",
	"technologyreview.com",
	"scientificamerican.com",
	"nationalgeographic.com",
	"vanityfair.com",
	"newsweek.com",
	"theinformation.com",
	"telegraph.co.uk",
	"thetimes.co.uk",
	"thetimes.com",
	"theglobeandmail.com",
	"thestar.com",
	"afr.com",
	"smh.com.au",
	"theaustralian.com.au",
	"nzherald.co.nz",
	"lemonde.fr",
	"spiegel.de",
	"zeit.de",
	"haaretz.com",
	"nikkei.com",
	"scmp.com",
}
