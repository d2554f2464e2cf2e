package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SampleArchive is a small three-day village in the 501 namespace. It carries
// an extension namespace bound on the root and used inside a period, a rawdata
// span, a wolf attack and a player list that discloses every role.
const SampleArchive = `<?xml version="1.0" encoding="UTF-8"?>
<!-- sample village -->
<village xmlns="http://jindolf.osdn.jp/xml/ns/501"
    xmlns:ext="urn:example:annotations"
    xml:base="http://example.com/wolf/"
    vid="1024" fullName="Village of Tests" state="gameover"
    graveIconURI="img/grave.png">
  <avatarList>
    <avatar avatarId="gerd" fullName="Gerd the Farmhand" shortName="Gerd" faceIconURI="img/face01.png"/>
    <avatar avatarId="otto" fullName="Otto the Innkeeper" shortName="Otto" faceIconURI="img/face02.png"/>
    <avatar avatarId="lisa" fullName="Lisa the Maid" shortName="Lisa" faceIconURI="http://cdn.example.com/face03.png"/>
  </avatarList>
  <period type="prologue" day="0">
    <startEntry><li>The village gathers.</li></startEntry>
    <onStage entryNo="1" avatarId="gerd"><li>1. Gerd</li></onStage>
    <talk type="public" avatarId="gerd" time="10:00:00"><li>Hello</li><li>everyone</li></talk>
    <talk type="public" avatarId="gerd" time="10:01:30.5"><li>Second &amp; last</li></talk>
  </period>
  <period type="progress" day="1">
    <talk type="wolf" avatarId="otto" time="23:00:00"><li>Tonight.</li></talk>
    <ext:note ext:by="editor">annotation<ext:inner/></ext:note>
    <assault byWhom="otto" avatarId="gerd" time="23:59:59.999"><li>Bite <rawdata><b>Gerd</b></rawdata>!</li></assault>
    <talk type="private" avatarId="lisa" time="12:00:00.25"><li>Hmm.</li></talk>
    <murdered><li>Gerd was found dead.</li><avatarRef avatarId="gerd"/></murdered>
    <judge byWhom="lisa" target="otto"><li>Lisa divines Otto.</li></judge>
  </period>
  <period type="epilogue" day="2">
    <winWolf><li>The wolves win.</li></winWolf>
    <playerList>
      <li>Players</li>
      <playerInfo playerId="p1" avatarId="gerd" survive="false" role="innocent" uri="http://example.com/p1"/>
      <playerInfo playerId="p2" avatarId="otto" survive="true" role="wolf"/>
      <playerInfo playerId="p3" avatarId="lisa" survive="true" role="seer"/>
    </playerList>
    <talk type="grave" avatarId="gerd" time="08:00:00"><li>gg</li></talk>
  </period>
</village>
`

// SampleArchive401 is SampleArchive under the original namespace.
var SampleArchive401 = strings.Replace(SampleArchive,
	"http://jindolf.osdn.jp/xml/ns/501", "http://jindolf.sourceforge.jp/xml/ns/401", 1)

// WriteArchive writes content to dir/name and returns the path.
func WriteArchive(t testing.TB, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
