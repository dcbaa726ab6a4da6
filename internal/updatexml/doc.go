// Package updatexml parses vendor update documents into package entries.
//
// A document looks like
//
//	<titlepatch titleid="BCUS98148">
//	  <tag name="BCUS98148_T3">
//	    <package version="01.01" size="5216" sha1sum="..." url="http://...">
//	      <paramsfo><TITLE>LittleBigPlanet</TITLE></paramsfo>
//	    </package>
//	  </tag>
//	</titlepatch>
//
// Package fields are read from attributes and, when an attribute is absent,
// from a child element of the same name. Entries without a usable url are
// dropped with a warning; a structurally broken document is ErrMalformed.
// The vendor answers unknown titles with an <Error><Code> document, which
// is reported as *VendorError.
package updatexml
